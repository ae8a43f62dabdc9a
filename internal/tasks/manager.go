// Package tasks implements the task store and ordering operations of
// spec.md §4.F: the status FSM, parent/dependency placement validation,
// display-order renumbering, bulk operations, search, and deletion.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/platform/writequeue"
	"github.com/conclave-mcp/orchestrator/internal/realtime"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// Manager implements the task-management tool group. Every mutation is
// submitted to queue so it serializes against every other write in the
// system, and the multi-row operations (Reorder, Delete, BulkUpdate) run
// inside tx so a concurrent writer touching the same rows loses cleanly
// instead of interleaving, per spec.md §4.A and §5.
type Manager struct {
	tasks storage.TaskStore
	tx    storage.Transactor
	queue *writequeue.Queue
	hub   *realtime.Hub
}

// New builds a Manager over store, broadcasting change events on hub (nil
// is accepted for tests and disables broadcasting). queue may be nil in
// tests, in which case mutations run inline instead of through the
// serializer.
func New(store storage.TaskStore, tx storage.Transactor, queue *writequeue.Queue, hub *realtime.Hub) *Manager {
	return &Manager{tasks: store, tx: tx, queue: queue, hub: hub}
}

func (m *Manager) broadcast(event realtime.Event) {
	if m.hub != nil {
		event.Ts = time.Now()
		m.hub.Broadcast(realtime.ChannelTasks, event)
	}
}

// submit runs job through the write queue when one is configured, or
// inline otherwise. Every durable mutation goes through this so reads
// stay queue-free per spec.md §4.A while writes serialize globally.
func (m *Manager) submit(ctx context.Context, job writequeue.Job) error {
	if m.queue == nil {
		return job(ctx)
	}
	return m.queue.SubmitWait(ctx, job)
}

// withTx runs fn inside a transaction when one is configured, or against
// the plain store otherwise (tests construct a Manager with a nil tx).
func (m *Manager) withTx(ctx context.Context, fn func(ctx context.Context, tasks storage.TaskStore) error) error {
	if m.tx == nil {
		return fn(ctx, m.tasks)
	}
	return m.tx.WithinTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		return fn(ctx, tx.Tasks)
	})
}

// CreateParams are the validated arguments to Create.
type CreateParams struct {
	TaskID         string
	Title          string
	Description    string
	Priority       domain.TaskPriority
	CreatedBy      string
	ParentTask     *string
	DependsOnTasks []string
	Tags           []string
	DueDate        *time.Time
	Metadata       map[string]any
}

// Create validates field constraints and placement, then inserts a new
// task in the pending state at the end of its scope's display order.
func (m *Manager) Create(ctx context.Context, p CreateParams) (domain.Task, error) {
	if err := validateTitle(p.Title); err != nil {
		return domain.Task{}, err
	}
	if len(p.Description) > domain.MaxDescriptionLen {
		return domain.Task{}, apperrors.FieldError("description", "too long")
	}
	if len(p.Tags) > domain.MaxTags {
		return domain.Task{}, apperrors.FieldError("tags", "too many tags")
	}
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	}

	var task domain.Task
	err := m.submit(ctx, func(ctx context.Context) error {
		t, err := m.createLocked(ctx, m.tasks, p)
		task = t
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	m.broadcast(realtime.Event{Type: "task.created", EntityID: task.TaskID})
	return task, nil
}

func (m *Manager) createLocked(ctx context.Context, store storage.TaskStore, p CreateParams) (domain.Task, error) {
	if err := validatePlacement(ctx, store, p.TaskID, p.ParentTask, p.DependsOnTasks); err != nil {
		return domain.Task{}, err
	}

	siblings, err := store.List(ctx)
	if err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "list tasks", err)
	}
	maxOrder := -1
	for _, t := range siblings {
		if samePlacement(t.ParentTask, p.ParentTask) && t.DisplayOrder > maxOrder {
			maxOrder = t.DisplayOrder
		}
	}

	now := time.Now()
	task := domain.Task{
		TaskID:         p.TaskID,
		Title:          p.Title,
		Description:    p.Description,
		Status:         domain.TaskPending,
		Priority:       p.Priority,
		CreatedBy:      p.CreatedBy,
		ParentTask:     p.ParentTask,
		DependsOnTasks: p.DependsOnTasks,
		Tags:           p.Tags,
		DisplayOrder:   maxOrder + 1,
		DueDate:        p.DueDate,
		Metadata:       p.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.Create(ctx, task); err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "persist task", err)
	}
	return task, nil
}

func validateTitle(title string) error {
	if len(title) == 0 || len(title) > domain.MaxTitleLen {
		return apperrors.FieldError("title", "must be 1-500 characters")
	}
	return nil
}

// UpdateStatus enforces the FSM transition and persists the new status.
func (m *Manager) UpdateStatus(ctx context.Context, taskID string, to domain.TaskStatus) (domain.Task, error) {
	var task domain.Task
	err := m.submit(ctx, func(ctx context.Context) error {
		t, err := m.updateStatusLocked(ctx, m.tasks, taskID, to)
		task = t
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	m.broadcast(realtime.Event{Type: "task.status_changed", EntityID: taskID, Changes: map[string]any{"status": to}})
	return task, nil
}

func (m *Manager) updateStatusLocked(ctx context.Context, store storage.TaskStore, taskID string, to domain.TaskStatus) (domain.Task, error) {
	task, ok, err := store.Get(ctx, taskID)
	if err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "get task", err)
	}
	if !ok {
		return domain.Task{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("task %q not found", taskID))
	}
	if task.Status.Terminal() {
		return domain.Task{}, apperrors.New(apperrors.InvalidTransition, fmt.Sprintf("task %q is already %s", taskID, task.Status))
	}
	if !CanTransition(task.Status, to) {
		return domain.Task{}, apperrors.New(apperrors.InvalidTransition, fmt.Sprintf("cannot move from %s to %s", task.Status, to))
	}
	task.Status = to
	task.UpdatedAt = time.Now()
	if err := store.Update(ctx, task); err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "persist task", err)
	}
	return task, nil
}

// UpdateFieldsParams carries the optional field updates update_task_fields
// accepts; a nil pointer leaves the field unchanged.
type UpdateFieldsParams struct {
	Title          *string
	Description    *string
	Priority       *domain.TaskPriority
	ParentTask     **string
	DependsOnTasks *[]string
	Tags           *[]string
	DueDate        **time.Time
	Metadata       map[string]any
}

// UpdateFields applies a partial update, re-validating placement if the
// parent or dependency set changed.
func (m *Manager) UpdateFields(ctx context.Context, taskID string, p UpdateFieldsParams) (domain.Task, error) {
	var task domain.Task
	err := m.submit(ctx, func(ctx context.Context) error {
		t, err := m.updateFieldsLocked(ctx, m.tasks, taskID, p)
		task = t
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	m.broadcast(realtime.Event{Type: "task.updated", EntityID: taskID})
	return task, nil
}

func (m *Manager) updateFieldsLocked(ctx context.Context, store storage.TaskStore, taskID string, p UpdateFieldsParams) (domain.Task, error) {
	task, ok, err := store.Get(ctx, taskID)
	if err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "get task", err)
	}
	if !ok {
		return domain.Task{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("task %q not found", taskID))
	}

	placementChanged := false
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return domain.Task{}, err
		}
		task.Title = *p.Title
	}
	if p.Description != nil {
		if len(*p.Description) > domain.MaxDescriptionLen {
			return domain.Task{}, apperrors.FieldError("description", "too long")
		}
		task.Description = *p.Description
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.ParentTask != nil {
		task.ParentTask = *p.ParentTask
		placementChanged = true
	}
	if p.DependsOnTasks != nil {
		if len(*p.DependsOnTasks) > 0 {
			task.DependsOnTasks = *p.DependsOnTasks
		} else {
			task.DependsOnTasks = nil
		}
		placementChanged = true
	}
	if p.Tags != nil {
		if len(*p.Tags) > domain.MaxTags {
			return domain.Task{}, apperrors.FieldError("tags", "too many tags")
		}
		task.Tags = *p.Tags
	}
	if p.DueDate != nil {
		task.DueDate = *p.DueDate
	}
	if p.Metadata != nil {
		task.Metadata = p.Metadata
	}

	if placementChanged {
		if err := validatePlacement(ctx, store, taskID, task.ParentTask, task.DependsOnTasks); err != nil {
			return domain.Task{}, err
		}
	}

	task.UpdatedAt = time.Now()
	if err := store.Update(ctx, task); err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "persist task", err)
	}
	return task, nil
}

// Assign sets assigned_to and persists it. It does not check that agentID
// names an existing agent, and neither does the assign_task tool that
// calls it.
func (m *Manager) Assign(ctx context.Context, taskID string, agentID *string) (domain.Task, error) {
	var task domain.Task
	err := m.submit(ctx, func(ctx context.Context) error {
		t, err := m.assignLocked(ctx, m.tasks, taskID, agentID)
		task = t
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	m.broadcast(realtime.Event{Type: "task.assigned", EntityID: taskID, Changes: map[string]any{"assigned_to": agentID}})
	return task, nil
}

func (m *Manager) assignLocked(ctx context.Context, store storage.TaskStore, taskID string, agentID *string) (domain.Task, error) {
	task, ok, err := store.Get(ctx, taskID)
	if err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "get task", err)
	}
	if !ok {
		return domain.Task{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("task %q not found", taskID))
	}
	task.AssignedTo = agentID
	task.UpdatedAt = time.Now()
	if err := store.Update(ctx, task); err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "persist task", err)
	}
	return task, nil
}

// View returns a single task.
func (m *Manager) View(ctx context.Context, taskID string) (domain.Task, error) {
	task, ok, err := m.tasks.Get(ctx, taskID)
	if err != nil {
		return domain.Task{}, apperrors.Wrap(apperrors.Internal, "get task", err)
	}
	if !ok {
		return domain.Task{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("task %q not found", taskID))
	}
	return task, nil
}

// SearchFilter narrows the task set returned by Search.
type SearchFilter struct {
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
	AssignedTo *string
	Tag        string
	Text       string
}

// Search applies filter and returns matches ordered by display_order.
func (m *Manager) Search(ctx context.Context, filter SearchFilter) ([]domain.Task, error) {
	all, err := m.tasks.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list tasks", err)
	}
	var out []domain.Task
	for _, t := range all {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Tag != "" && !containsString(t.Tags, filter.Tag) {
			continue
		}
		if filter.Text != "" {
			needle := strings.ToLower(filter.Text)
			if !strings.Contains(strings.ToLower(t.Title), needle) && !strings.Contains(strings.ToLower(t.Description), needle) {
				continue
			}
		}
		out = append(out, t)
	}
	sortByDisplayOrder(out)
	return out, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func sortByDisplayOrder(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].DisplayOrder < tasks[j].DisplayOrder })
}

// Reorder renumbers scope so taskID lands at newIndex. The read of every
// sibling and the renumbering writes all happen inside one transaction so
// a second, concurrent reorder_tasks on the same scope cannot interleave
// and produce a non-dense display_order, per spec.md §8 property 2.
func (m *Manager) Reorder(ctx context.Context, taskID string, newIndex int, scope OrderScope) error {
	err := m.submit(ctx, func(ctx context.Context) error {
		return m.withTx(ctx, func(ctx context.Context, store storage.TaskStore) error {
			return Reorder(ctx, store, taskID, newIndex, scope)
		})
	})
	if err != nil {
		return err
	}
	m.broadcast(realtime.Event{Type: "task.reordered", EntityID: taskID})
	return nil
}

// Delete removes a task, refusing if it has any non-terminal descendants
// (children whose parent_task is taskID, transitively), per spec.md §4.F.
// The descendant walk and the delete itself run inside one transaction so
// a concurrent task creation under taskID cannot slip in between the
// check and the delete.
func (m *Manager) Delete(ctx context.Context, taskID string) error {
	err := m.submit(ctx, func(ctx context.Context) error {
		return m.withTx(ctx, func(ctx context.Context, store storage.TaskStore) error {
			return m.deleteLocked(ctx, store, taskID)
		})
	})
	if err != nil {
		return err
	}
	m.broadcast(realtime.Event{Type: "task.deleted", EntityID: taskID})
	return nil
}

func (m *Manager) deleteLocked(ctx context.Context, store storage.TaskStore, taskID string) error {
	if _, ok, err := store.Get(ctx, taskID); err != nil {
		return apperrors.Wrap(apperrors.Internal, "get task", err)
	} else if !ok {
		return apperrors.New(apperrors.NotFound, fmt.Sprintf("task %q not found", taskID))
	}

	descendants, err := allDescendants(ctx, store, taskID)
	if err != nil {
		return err
	}
	for _, child := range descendants {
		if !child.Status.Terminal() {
			return apperrors.New(apperrors.InvalidRelation, fmt.Sprintf("task %q has non-terminal descendant %q", taskID, child.TaskID))
		}
	}

	if err := store.Delete(ctx, taskID); err != nil {
		return apperrors.Wrap(apperrors.Internal, "delete task", err)
	}
	return nil
}

// allDescendants walks the parent_task tree rooted at taskID, collecting
// every transitive child (storage.TaskStore.Children only returns direct
// children).
func allDescendants(ctx context.Context, store storage.TaskStore, taskID string) ([]domain.Task, error) {
	var out []domain.Task
	frontier := []string{taskID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		children, err := store.Children(ctx, id)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, "list children", err)
		}
		for _, c := range children {
			out = append(out, c)
			frontier = append(frontier, c.TaskID)
		}
	}
	return out, nil
}

// BulkOp names one operation bulk_update_tasks can apply to each id.
type BulkOp string

const (
	BulkSetStatus   BulkOp = "set_status"
	BulkSetPriority BulkOp = "set_priority"
	BulkAssign      BulkOp = "assign"
	BulkDelete      BulkOp = "delete"
)

// BulkOutcome is the per-id result of a bulk_update_tasks call.
type BulkOutcome struct {
	TaskID string
	OK     bool
	Error  string
}

// BulkUpdate applies op with value to every id inside a single
// transaction, collecting a per-id outcome vector so partial success
// stays visible to the caller even though each id's own validation
// failure does not stop the others — the transaction boundary protects
// the whole pass against interleaving with another concurrent multi-row
// operation, not against partially-applied ids within itself.
func (m *Manager) BulkUpdate(ctx context.Context, ids []string, op BulkOp, value any) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(ids))
	_ = m.submit(ctx, func(ctx context.Context) error {
		return m.withTx(ctx, func(ctx context.Context, store storage.TaskStore) error {
			for _, id := range ids {
				var err error
				switch op {
				case BulkSetStatus:
					status, _ := value.(domain.TaskStatus)
					_, err = m.updateStatusLocked(ctx, store, id, status)
				case BulkSetPriority:
					priority, _ := value.(domain.TaskPriority)
					p := priority
					_, err = m.updateFieldsLocked(ctx, store, id, UpdateFieldsParams{Priority: &p})
				case BulkAssign:
					agentID, _ := value.(string)
					var ptr *string
					if agentID != "" {
						ptr = &agentID
					}
					_, err = m.assignLocked(ctx, store, id, ptr)
				case BulkDelete:
					err = m.deleteLocked(ctx, store, id)
				default:
					err = apperrors.New(apperrors.ValidationError, fmt.Sprintf("unknown bulk op %q", op))
				}
				outcome := BulkOutcome{TaskID: id, OK: err == nil}
				if err != nil {
					outcome.Error = err.Error()
				}
				outcomes = append(outcomes, outcome)
			}
			return nil
		})
	})
	for _, o := range outcomes {
		if o.OK {
			m.broadcast(realtime.Event{Type: "task.bulk_updated", EntityID: o.TaskID})
		}
	}
	return outcomes
}
