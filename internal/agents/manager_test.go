package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
)

func newTestManager(t *testing.T, maxAgents int) *Manager {
	t.Helper()
	stores := memory.NewStores()
	tokens := auth.New(stores.Tokens, stores.Audit)
	require.NoError(t, tokens.Hydrate(context.Background()))
	return New(stores, tokens, nil, nil, maxAgents)
}

func TestCreateRequiresAdminRole(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.Create(context.Background(), "worker", CreateParams{AgentID: "a1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.PermissionDenied, appErr.Kind)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.AlreadyExists, appErr.Kind)
}

func TestCreateEnforcesMaxAgentsBound(t *testing.T) {
	m := newTestManager(t, 1)
	_, err := m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "admin", CreateParams{AgentID: "a2"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ResourceExhausted, appErr.Kind)
}

func TestTerminateIsIdempotent(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	require.NoError(t, err)
	require.NoError(t, m.Terminate(context.Background(), "admin", "a1"))
	require.NoError(t, m.Terminate(context.Background(), "admin", "a1"))

	agents, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, domain.AgentTerminated, agents[0].Status)
}

func TestTerminateReleasesClaimsAndReassignsTasks(t *testing.T) {
	stores := memory.NewStores()
	tokens := auth.New(stores.Tokens, stores.Audit)
	require.NoError(t, tokens.Hydrate(context.Background()))
	m := New(stores, tokens, nil, nil, 10)

	_, err := m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	require.NoError(t, err)

	require.NoError(t, stores.Claims.Claim(context.Background(), domain.FileClaim{FilePath: "/x.go", AgentID: "a1"}))

	assigned := "a1"
	require.NoError(t, stores.Tasks.Create(context.Background(), domain.Task{
		TaskID: "t1", Title: "do it", Status: domain.TaskInProgress, AssignedTo: &assigned,
	}))

	require.NoError(t, m.Terminate(context.Background(), "admin", "a1"))

	_, claimed, err := stores.Claims.Get(context.Background(), "/x.go")
	require.NoError(t, err)
	assert.False(t, claimed)

	task, ok, err := stores.Tasks.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Nil(t, task.AssignedTo)
}

func TestTokensScopedToSelfForNonAdmin(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.Create(context.Background(), "admin", CreateParams{AgentID: "a1"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "admin", CreateParams{AgentID: "a2"})
	require.NoError(t, err)

	seen, err := m.Tokens(context.Background(), "worker", "a1")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "a1", seen[0].AgentID)
}

func TestClaimFileIsIdempotentForSameAgent(t *testing.T) {
	m := newTestManager(t, 10)
	r1, err := m.ClaimFile(context.Background(), "a1", "/x.go")
	require.NoError(t, err)
	assert.True(t, r1.Claimed)
	r2, err := m.ClaimFile(context.Background(), "a1", "/x.go")
	require.NoError(t, err)
	assert.True(t, r2.Claimed)
}

func TestClaimFileRejectsWhenHeldByAnotherAgent(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.ClaimFile(context.Background(), "a1", "/x.go")
	require.NoError(t, err)
	result, err := m.ClaimFile(context.Background(), "a2", "/x.go")
	require.NoError(t, err)
	assert.False(t, result.Claimed)
	assert.Equal(t, "a1", result.Holder)
}

func TestReleaseFileRejectsNonHolderNonAdmin(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.ClaimFile(context.Background(), "a1", "/x.go")
	require.NoError(t, err)
	err = m.ReleaseFile(context.Background(), "worker", "a2", "/x.go")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.PermissionDenied, appErr.Kind)
}

func TestReleaseFileAllowsAdmin(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.ClaimFile(context.Background(), "a1", "/x.go")
	require.NoError(t, err)
	require.NoError(t, m.ReleaseFile(context.Background(), "admin", "anyone", "/x.go"))
	_, claimed, err := m.FileMetadata(context.Background(), "/x.go")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestSendMessageThenListForRecipient(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.SendMessage(context.Background(), "a1", "a2", "hello")
	require.NoError(t, err)
	msgs, err := m.Messages(context.Background(), "a2", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Payload)
}

func TestBroadcastMessageReachesEveryAgent(t *testing.T) {
	m := newTestManager(t, 10)
	_, err := m.BroadcastMessage(context.Background(), "a1", "attention everyone")
	require.NoError(t, err)
	msgs, err := m.Messages(context.Background(), "a2", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].ToAgent)
}
