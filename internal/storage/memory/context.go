package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// ContextEntryStore is the in-memory storage.ContextEntryStore implementation.
type ContextEntryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.ContextEntry
	history map[string][]domain.ContextHistoryEntry
}

// NewContextEntryStore returns an empty ContextEntryStore.
func NewContextEntryStore() *ContextEntryStore {
	return &ContextEntryStore{
		entries: make(map[string]domain.ContextEntry),
		history: make(map[string][]domain.ContextHistoryEntry),
	}
}

func (s *ContextEntryStore) Put(ctx context.Context, e domain.ContextEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ContextKey] = e
	return nil
}

func (s *ContextEntryStore) Get(ctx context.Context, contextKey string) (domain.ContextEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[contextKey]
	return e, ok, nil
}

func (s *ContextEntryStore) List(ctx context.Context) ([]domain.ContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ContextEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContextKey < out[j].ContextKey })
	return out, nil
}

func (s *ContextEntryStore) AppendHistory(ctx context.Context, h domain.ContextHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[h.ContextKey] = append(s.history[h.ContextKey], h)
	return nil
}

func (s *ContextEntryStore) History(ctx context.Context, contextKey string) ([]domain.ContextHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ContextHistoryEntry, len(s.history[contextKey]))
	copy(out, s.history[contextKey])
	return out, nil
}
