package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
)

func TestApplyNeutralizeRedactsMatch(t *testing.T) {
	findings := []Finding{{Path: "$", Name: "script injection: inline script tag", Severity: SeverityHigh, Match: "<script"}}
	out, outcome, err := Apply(PolicyNeutralize, findings, "hello <script src=x>")
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)
	assert.Contains(t, out, "[REDACTED:")
	assert.NotContains(t, out, "<script")
}

func TestApplyRemoveStripsMatch(t *testing.T) {
	findings := []Finding{{Path: "$", Name: "x", Severity: SeverityMedium, Match: "BADTOKEN"}}
	out, _, err := Apply(PolicyRemove, findings, "prefix BADTOKEN suffix")
	require.NoError(t, err)
	assert.NotContains(t, out, "BADTOKEN")
}

func TestApplyBlockPolicyRejects(t *testing.T) {
	findings := []Finding{{Path: "$", Name: "x", Severity: SeverityLow, Match: "x"}}
	_, outcome, err := Apply(PolicyBlock, findings, "text")
	assert.True(t, outcome.Blocked)
	assert.Equal(t, apperrors.SecurityError, apperrors.KindOf(err))
}

func TestApplyCriticalAlwaysBlocksRegardlessOfPolicy(t *testing.T) {
	findings := []Finding{{Path: "$", Name: "x", Severity: SeverityCritical, Match: "x"}}
	_, outcome, err := Apply(PolicyNeutralize, findings, "text")
	assert.True(t, outcome.Blocked)
	assert.Error(t, err)
}

func TestApplyNoFindingsPassesThrough(t *testing.T) {
	out, outcome, err := Apply(PolicyBlock, nil, "clean text")
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)
	assert.Equal(t, "clean text", out)
}
