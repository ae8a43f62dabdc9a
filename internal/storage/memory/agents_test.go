package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

func TestAgentStoreCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewAgentStore()

	a := domain.Agent{AgentID: "agent-1", Status: domain.AgentCreated}
	require.NoError(t, s.Create(ctx, a))

	err := s.Create(ctx, a)
	assert.Error(t, err, "duplicate create should fail")

	got, ok, err := s.Get(ctx, "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.AgentCreated, got.Status)

	got.Status = domain.AgentActive
	require.NoError(t, s.Update(ctx, got))

	got, _, _ = s.Get(ctx, "agent-1")
	assert.Equal(t, domain.AgentActive, got.Status)

	require.NoError(t, s.Delete(ctx, "agent-1"))
	_, ok, _ = s.Get(ctx, "agent-1")
	assert.False(t, ok)
}

func TestAgentStoreListIsSortedByID(t *testing.T) {
	ctx := context.Background()
	s := NewAgentStore()
	require.NoError(t, s.Create(ctx, domain.Agent{AgentID: "b"}))
	require.NoError(t, s.Create(ctx, domain.Agent{AgentID: "a"}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].AgentID)
	assert.Equal(t, "b", list[1].AgentID)
}
