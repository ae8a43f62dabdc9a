package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// FileClaimStore is the in-memory storage.FileClaimStore implementation.
type FileClaimStore struct {
	mu     sync.RWMutex
	claims map[string]domain.FileClaim
}

// NewFileClaimStore returns an empty FileClaimStore.
func NewFileClaimStore() *FileClaimStore {
	return &FileClaimStore{claims: make(map[string]domain.FileClaim)}
}

func (s *FileClaimStore) Claim(ctx context.Context, c domain.FileClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.claims[c.FilePath]; exists && existing.AgentID != c.AgentID {
		return fmt.Errorf("memory: %s already claimed by %s", c.FilePath, existing.AgentID)
	}
	s.claims[c.FilePath] = c
	return nil
}

func (s *FileClaimStore) Release(ctx context.Context, filePath, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.claims[filePath]
	if !exists {
		return nil
	}
	if existing.AgentID != agentID {
		return fmt.Errorf("memory: %s claimed by %s, not %s", filePath, existing.AgentID, agentID)
	}
	delete(s.claims, filePath)
	return nil
}

func (s *FileClaimStore) Get(ctx context.Context, filePath string) (domain.FileClaim, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[filePath]
	return c, ok, nil
}

func (s *FileClaimStore) List(ctx context.Context) ([]domain.FileClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FileClaim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}
