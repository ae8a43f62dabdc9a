package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

func TestFileClaimStoreClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	s := NewFileClaimStore()

	claim := domain.FileClaim{FilePath: "main.go", AgentID: "agent-1", ClaimedAt: time.Now()}
	require.NoError(t, s.Claim(ctx, claim))

	other := domain.FileClaim{FilePath: "main.go", AgentID: "agent-2"}
	assert.Error(t, s.Claim(ctx, other), "should not allow a conflicting claim")

	assert.Error(t, s.Release(ctx, "main.go", "agent-2"), "wrong agent cannot release")
	assert.NoError(t, s.Release(ctx, "main.go", "agent-1"))

	_, ok, err := s.Get(ctx, "main.go")
	require.NoError(t, err)
	assert.False(t, ok)
}
