package memory

import (
	"context"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// MessageStore is the in-memory storage.MessageStore implementation.
// Messages are appended to a slice; index position doubles as the
// monotonic sequence number used for the "since" cursor.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.AgentMessage
}

// NewMessageStore returns an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Append(ctx context.Context, m domain.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// ListFor returns messages addressed to agentID (or broadcast, ToAgent ==
// nil) with sequence index greater than since.
func (s *MessageStore) ListFor(ctx context.Context, agentID string, since int) ([]domain.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AgentMessage
	for i, m := range s.messages {
		if i <= since {
			continue
		}
		if m.ToAgent == nil || *m.ToAgent == agentID {
			out = append(out, m)
		}
	}
	return out, nil
}

// All returns every stored message regardless of recipient, used by the
// RAG scanner to index the full message corpus.
func (s *MessageStore) All(ctx context.Context) ([]domain.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AgentMessage, len(s.messages))
	copy(out, s.messages)
	return out, nil
}
