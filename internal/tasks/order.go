package tasks

import (
	"context"
	"sort"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// OrderScope selects whether reorder_tasks renumbers within one parent's
// children or across the whole task table, resolving the Open Question in
// spec.md §9: the spec assumes the caller picks the scope explicitly.
type OrderScope string

const (
	ScopeSiblings OrderScope = "siblings"
	ScopeGlobal   OrderScope = "global"
)

// Reorder moves taskID to newIndex within scope and renumbers every other
// task in the same scope so display_order stays a dense 0..n-1 permutation,
// per spec.md §8 property 2.
func Reorder(ctx context.Context, store storage.TaskStore, taskID string, newIndex int, scope OrderScope) error {
	all, err := store.List(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "list tasks", err)
	}
	target, ok := findTask(all, taskID)
	if !ok {
		return apperrors.New(apperrors.NotFound, "task not found")
	}

	var siblings []domain.Task
	switch scope {
	case ScopeGlobal:
		siblings = all
	default:
		for _, t := range all {
			if samePlacement(t.ParentTask, target.ParentTask) {
				siblings = append(siblings, t)
			}
		}
	}

	sort.SliceStable(siblings, func(i, j int) bool {
		return siblings[i].DisplayOrder < siblings[j].DisplayOrder
	})

	ordered := make([]domain.Task, 0, len(siblings))
	for _, t := range siblings {
		if t.TaskID != taskID {
			ordered = append(ordered, t)
		}
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(ordered) {
		newIndex = len(ordered)
	}
	ordered = append(ordered[:newIndex], append([]domain.Task{target}, ordered[newIndex:]...)...)

	for i, t := range ordered {
		if t.DisplayOrder == i {
			continue
		}
		t.DisplayOrder = i
		if err := store.Update(ctx, t); err != nil {
			return apperrors.Wrap(apperrors.Internal, "renumber task", err)
		}
	}
	return nil
}

func findTask(all []domain.Task, id string) (domain.Task, bool) {
	for _, t := range all {
		if t.TaskID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func samePlacement(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
