package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

func TestMessageStoreListForFiltersByRecipientAndCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	agent2 := "agent-2"
	require.NoError(t, s.Append(ctx, domain.AgentMessage{MessageID: "m1", FromAgent: "admin", ToAgent: &agent2}))
	require.NoError(t, s.Append(ctx, domain.AgentMessage{MessageID: "m2", FromAgent: "admin", ToAgent: nil}))
	other := "agent-3"
	require.NoError(t, s.Append(ctx, domain.AgentMessage{MessageID: "m3", FromAgent: "admin", ToAgent: &other}))

	msgs, err := s.ListFor(ctx, "agent-2", -1)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "direct message plus broadcast, not the message addressed to agent-3")

	msgs, err = s.ListFor(ctx, "agent-2", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "cursor should exclude the first message")
}
