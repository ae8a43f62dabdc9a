package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
)

func TestIssueVerifyRevoke(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewTokenStore()
	audit := memory.NewAuditStore()
	reg := New(tokens, audit)

	token, err := reg.Issue(ctx, "agent-1", "engineer")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	p, err := reg.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", p.AgentID)

	require.NoError(t, reg.Revoke(ctx, token))
	_, err = reg.Verify(token)
	assert.Equal(t, apperrors.Unauthenticated, apperrors.KindOf(err))
}

func TestVerifyUnknownTokenFails(t *testing.T) {
	reg := New(memory.NewTokenStore(), memory.NewAuditStore())
	_, err := reg.Verify("does-not-exist")
	assert.Equal(t, apperrors.Unauthenticated, apperrors.KindOf(err))
}

func TestHydrateSkipsRevokedTokens(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewTokenStore()
	reg := New(tokens, nil)

	tok, err := reg.Issue(ctx, "agent-1", "engineer")
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(ctx, tok))

	fresh := New(tokens, nil)
	require.NoError(t, fresh.Hydrate(ctx))
	_, err = fresh.Verify(tok)
	assert.Error(t, err)
}

func TestRecordAuditIsNoOpWithoutSink(t *testing.T) {
	reg := New(memory.NewTokenStore(), nil)
	reg.RecordAudit(context.Background(), "agent-1", "create_task", "ok", "", "req-1")
}
