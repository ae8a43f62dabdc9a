package memory

import (
	"context"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// TokenStore is the in-memory storage.TokenStore implementation.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]storage.TokenRecord
}

// NewTokenStore returns an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]storage.TokenRecord)}
}

func (s *TokenStore) Issue(ctx context.Context, t storage.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = t
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil
	}
	t.Revoked = true
	s.tokens[token] = t
	return nil
}

func (s *TokenStore) All(ctx context.Context) ([]storage.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.TokenRecord, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out, nil
}
