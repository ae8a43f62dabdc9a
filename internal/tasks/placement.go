package tasks

import (
	"context"
	"fmt"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// validatePlacement checks that parent and dependsOn reference existing
// tasks and that adopting them does not introduce a cycle into the
// combined parent/dependency graph, per spec.md §4.F.
func validatePlacement(ctx context.Context, store storage.TaskStore, taskID string, parent *string, dependsOn []string) error {
	all, err := store.List(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "list tasks", err)
	}
	byID := make(map[string]domain.Task, len(all))
	for _, t := range all {
		byID[t.TaskID] = t
	}

	if parent != nil {
		if _, ok := byID[*parent]; !ok {
			return apperrors.New(apperrors.InvalidRelation, fmt.Sprintf("parent task %q does not exist", *parent))
		}
	}
	for _, dep := range dependsOn {
		if _, ok := byID[dep]; !ok {
			return apperrors.New(apperrors.InvalidRelation, fmt.Sprintf("dependency %q does not exist", dep))
		}
	}

	edges := make(map[string][]string, len(byID))
	for _, t := range byID {
		if t.ParentTask != nil {
			edges[t.TaskID] = append(edges[t.TaskID], *t.ParentTask)
		}
		edges[t.TaskID] = append(edges[t.TaskID], t.DependsOnTasks...)
	}
	edges[taskID] = nil
	if parent != nil {
		edges[taskID] = append(edges[taskID], *parent)
	}
	edges[taskID] = append(edges[taskID], dependsOn...)

	if hasCycleFrom(taskID, edges) {
		return apperrors.New(apperrors.InvalidRelation, "placement introduces a cycle")
	}
	return nil
}

// hasCycleFrom runs a DFS from start over the directed graph described by
// edges (task -> the tasks it points to), reporting whether start can
// reach itself.
func hasCycleFrom(start string, edges map[string][]string) bool {
	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range edges[node] {
			if next == start {
				return true
			}
			if visit(next) {
				return true
			}
		}
		return false
	}
	for _, next := range edges[start] {
		if next == start || visit(next) {
			return true
		}
	}
	return false
}
