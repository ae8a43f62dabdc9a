package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/config"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

func testLogger() *logger.Logger { return logger.NewDefault("test") }

func TestBootstrapAdminMintsTokenOnFirstBoot(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	tokenReg := auth.New(stores.Tokens, stores.Audit)
	cfg := &config.Config{}

	err := bootstrapAdmin(ctx, stores, tokenReg, cfg, testLogger())
	require.NoError(t, err)

	agent, ok, err := stores.Agents.Get(ctx, domain.AdminAgentID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin", agent.Role)
	assert.Equal(t, domain.AgentActive, agent.Status)
	assert.NotEmpty(t, agent.Token)

	principal, err := tokenReg.Verify(agent.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.AdminAgentID, principal.AgentID)
}

func TestBootstrapAdminHonorsPinnedToken(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	tokenReg := auth.New(stores.Tokens, stores.Audit)
	cfg := &config.Config{AdminToken: "pinned-token-value"}

	err := bootstrapAdmin(ctx, stores, tokenReg, cfg, testLogger())
	require.NoError(t, err)

	agent, ok, err := stores.Agents.Get(ctx, domain.AdminAgentID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pinned-token-value", agent.Token)

	principal, err := tokenReg.Verify("pinned-token-value")
	require.NoError(t, err)
	assert.Equal(t, domain.AdminAgentID, principal.AgentID)
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	tokenReg := auth.New(stores.Tokens, stores.Audit)
	cfg := &config.Config{}

	require.NoError(t, bootstrapAdmin(ctx, stores, tokenReg, cfg, testLogger()))
	first, _, err := stores.Agents.Get(ctx, domain.AdminAgentID)
	require.NoError(t, err)

	require.NoError(t, bootstrapAdmin(ctx, stores, tokenReg, cfg, testLogger()))
	second, _, err := stores.Agents.Get(ctx, domain.AdminAgentID)
	require.NoError(t, err)

	assert.Equal(t, first.Token, second.Token)
}

func TestRagCycleAgeReflectsOldestCheckpoint(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()

	now := time.Now()
	require.NoError(t, stores.RAG.SaveCheckpoint(ctx, domain.IndexerCheckpoint{
		SourceType: domain.SourceMarkdown, UpdatedAt: now,
	}))
	require.NoError(t, stores.RAG.SaveCheckpoint(ctx, domain.IndexerCheckpoint{
		SourceType: domain.SourceCode, UpdatedAt: now.Add(-2 * time.Hour),
	}))

	age := ragCycleAge(ctx, stores.RAG)
	assert.GreaterOrEqual(t, age, 2*time.Hour)
}

func TestRagCycleAgeZeroWithNoCheckpoints(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()

	assert.Equal(t, time.Duration(0), ragCycleAge(ctx, stores.RAG))
}

func TestOpenStorageSelectsMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StorageBackend: "memory"}

	stores, closer, err := openStorage(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, stores.Agents)
	assert.NoError(t, closer.Close())
}
