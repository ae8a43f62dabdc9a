package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

func newTestMonitor(t *testing.T, timeout time.Duration) (*SessionMonitor, *agents.Manager) {
	t.Helper()
	stores := memory.NewStores()
	tokenReg := auth.New(stores.Tokens, stores.Audit)
	require.NoError(t, tokenReg.Hydrate(context.Background()))
	agentMgr := agents.New(stores, tokenReg, nil, nil, 64)
	log := logger.NewDefault("test")
	mon := NewSessionMonitor(agentMgr, tokenReg, stores, timeout, time.Hour, log, nil)
	return mon, agentMgr
}

func findAgent(list []domain.Agent, agentID string) (domain.Agent, bool) {
	for _, a := range list {
		if a.AgentID == agentID {
			return a, true
		}
	}
	return domain.Agent{}, false
}

func TestSessionMonitorTerminatesAbandonedAgent(t *testing.T) {
	mon, agentMgr := newTestMonitor(t, time.Millisecond)
	ctx := context.Background()

	_, err := agentMgr.Create(ctx, "admin", agents.CreateParams{AgentID: "stale-agent"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	mon.sweep(ctx)

	list, err := agentMgr.List(ctx)
	require.NoError(t, err)
	agent, ok := findAgent(list, "stale-agent")
	require.True(t, ok)
	assert.Equal(t, domain.AgentTerminated, agent.Status)
}

func TestSessionMonitorLeavesFreshAgentAlone(t *testing.T) {
	mon, agentMgr := newTestMonitor(t, time.Hour)
	ctx := context.Background()

	_, err := agentMgr.Create(ctx, "admin", agents.CreateParams{AgentID: "fresh-agent"})
	require.NoError(t, err)

	mon.sweep(ctx)

	list, err := agentMgr.List(ctx)
	require.NoError(t, err)
	agent, ok := findAgent(list, "fresh-agent")
	require.True(t, ok)
	assert.NotEqual(t, domain.AgentTerminated, agent.Status)
}

func TestSessionMonitorStartStop(t *testing.T) {
	mon, _ := newTestMonitor(t, time.Hour)
	require.NoError(t, mon.Start(context.Background()))
	require.NoError(t, mon.Stop(context.Background()))
}
