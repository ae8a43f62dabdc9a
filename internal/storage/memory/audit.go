package memory

import (
	"context"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// AuditStore is the in-memory storage.AuditStore implementation.
type AuditStore struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

// NewAuditStore returns an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, e storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a snapshot of the recorded audit trail, for tests.
func (s *AuditStore) Entries() []storage.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
