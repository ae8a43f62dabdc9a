package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// TaskStore is the in-memory storage.TaskStore implementation.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

// NewTaskStore returns an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]domain.Task)}
}

func (s *TaskStore) Create(ctx context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.TaskID]; exists {
		return fmt.Errorf("memory: task %s already exists", t.TaskID)
	}
	s.tasks[t.TaskID] = t
	return nil
}

func (s *TaskStore) Get(ctx context.Context, taskID string) (domain.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	return t, ok, nil
}

func (s *TaskStore) Update(ctx context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.TaskID]; !exists {
		return fmt.Errorf("memory: task %s not found", t.TaskID)
	}
	s.tasks[t.TaskID] = t
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *TaskStore) List(ctx context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func (s *TaskStore) Children(ctx context.Context, parentTaskID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Task
	for _, t := range s.tasks {
		if t.ParentTask != nil && *t.ParentTask == parentTaskID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}
