package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/contextstore"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
	"github.com/conclave-mcp/orchestrator/internal/tasks"
)

func newTestRegistry(t *testing.T) (*mcp.Registry, *auth.Registry) {
	t.Helper()
	stores := memory.NewStores()
	tokenReg := auth.New(stores.Tokens, stores.Audit)
	require.NoError(t, tokenReg.Hydrate(context.Background()))

	agentMgr := agents.New(stores, tokenReg, nil, nil, 64)
	taskMgr := tasks.New(stores.Tasks, stores.Tx, nil, nil)
	ctxStore := contextstore.New(stores.Context, stores.Tx, nil, nil)

	reg := mcp.NewRegistry()
	RegisterAgentTools(reg, agentMgr)
	RegisterTaskTools(reg, taskMgr)
	RegisterContextTools(reg, ctxStore)
	RegisterCommunicationTools(reg, agentMgr)
	RegisterFileTools(reg, agentMgr)
	RegisterKnowledgeTools(reg, nil)
	return reg, tokenReg
}

func callTool(t *testing.T, reg *mcp.Registry, role, agentID, name string, args map[string]any) (any, error) {
	t.Helper()
	tool, ok := reg.Lookup(name)
	require.True(t, ok, "tool %s not registered", name)
	ctx := mcp.WithPrincipal(context.Background(), auth.Principal{AgentID: agentID, Role: role})
	return tool.Handler(ctx, args)
}

func TestCreateAgentToolRequiresAdmin(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "w1", "create_agent", map[string]any{"agent_id": "a1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.PermissionDenied, appErr.Kind)
}

func TestCreateAndListAgentsRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "admin", "admin", "create_agent", map[string]any{
		"agent_id": "a1", "capabilities": []any{"go", "python"},
	})
	require.NoError(t, err)

	result, err := callTool(t, reg, "worker", "a1", "list_agents", nil)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestCreateTaskThenUpdateStatusAndSearch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "create_task", map[string]any{
		"task_id": "t1", "title": "ship release", "tags": []any{"urgent"},
	})
	require.NoError(t, err)

	_, err = callTool(t, reg, "worker", "a1", "update_task_status", map[string]any{
		"task_id": "t1", "status": "in_progress",
	})
	require.NoError(t, err)

	found, err := callTool(t, reg, "worker", "a1", "search_tasks", map[string]any{"text": "release"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestBulkUpdateTasksPartialSuccess(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "create_task", map[string]any{"task_id": "t1", "title": "one"})
	require.NoError(t, err)

	result, err := callTool(t, reg, "worker", "a1", "bulk_update_tasks", map[string]any{
		"task_ids": []any{"t1", "missing"},
		"op":       "set_status",
		"value":    "in_progress",
	})
	require.NoError(t, err)
	outcomes, ok := result.([]tasks.BulkOutcome)
	require.True(t, ok)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
}

func TestUpdateAndQueryProjectContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "update_project_context", map[string]any{
		"key": "deploy.region", "value": "us-east-1",
	})
	require.NoError(t, err)

	found, err := callTool(t, reg, "worker", "a1", "query_project_context", map[string]any{"pattern": "deploy"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestAskProjectRAGReturnsUnavailableWhenDisabled(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "ask_project_rag", map[string]any{"query": "how does auth work"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.Unavailable, appErr.Kind)
}

func TestClaimFileThenReleaseRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "claim_file", map[string]any{"file_path": "/main.go"})
	require.NoError(t, err)

	_, err = callTool(t, reg, "worker", "a2", "claim_file", map[string]any{"file_path": "/main.go"})
	require.NoError(t, err)

	meta, err := callTool(t, reg, "worker", "a2", "get_file_metadata", map[string]any{"file_path": "/main.go"})
	require.NoError(t, err)
	asMap, ok := meta.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, asMap["claimed"])
	assert.Equal(t, "a1", asMap["agent_id"])

	_, err = callTool(t, reg, "worker", "a2", "release_file", map[string]any{"file_path": "/main.go"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.PermissionDenied, appErr.Kind)

	_, err = callTool(t, reg, "worker", "a1", "release_file", map[string]any{"file_path": "/main.go"})
	require.NoError(t, err)
}

func TestSendAndGetAgentMessages(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := callTool(t, reg, "worker", "a1", "send_agent_message", map[string]any{
		"to_agent": "a2", "payload": "review my PR",
	})
	require.NoError(t, err)

	msgs, err := callTool(t, reg, "worker", "a2", "get_agent_messages", nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
