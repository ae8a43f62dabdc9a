package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// AgentStore is the in-memory storage.AgentStore implementation.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]domain.Agent
}

// NewAgentStore returns an empty AgentStore.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]domain.Agent)}
}

func (s *AgentStore) Create(ctx context.Context, a domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[a.AgentID]; exists {
		return fmt.Errorf("memory: agent %s already exists", a.AgentID)
	}
	s.agents[a.AgentID] = a
	return nil
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (domain.Agent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	return a, ok, nil
}

func (s *AgentStore) Update(ctx context.Context, a domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[a.AgentID]; !exists {
		return fmt.Errorf("memory: agent %s not found", a.AgentID)
	}
	s.agents[a.AgentID] = a
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
	return nil
}

func (s *AgentStore) List(ctx context.Context) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}
