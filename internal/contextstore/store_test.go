package contextstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
)

func TestUpdateThenViewRoundTrips(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	_, err := s.Update(context.Background(), "build.target", map[string]any{"os": "linux"}, "target platform", "a1")
	require.NoError(t, err)

	entries, err := s.View(context.Background(), "build.target")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].UpdatedBy)
}

func TestUpdateAppendsHistory(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	_, err := s.Update(context.Background(), "k", "v1", "", "a1")
	require.NoError(t, err)
	_, err = s.Update(context.Background(), "k", "v2", "", "a1")
	require.NoError(t, err)

	history, err := s.History(context.Background(), "k")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateRejectsOversizedValue(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	big := make([]byte, 128*1024)
	_, err := s.Update(context.Background(), "k", string(big), "", "a1")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ValidationError, appErr.Kind)
}

func TestQuerySubstringMatchesKeys(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	_, err := s.Update(context.Background(), "build.target", "linux", "", "a1")
	require.NoError(t, err)
	_, err = s.Update(context.Background(), "runtime.version", "1.23", "", "a1")
	require.NoError(t, err)

	results, err := s.Query(context.Background(), "build")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "build.target", results[0].ContextKey)
}

func TestQueryJSONPathMatchesValues(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	_, err := s.Update(context.Background(), "service.config", map[string]any{"region": "us-east"}, "", "a1")
	require.NoError(t, err)
	_, err = s.Update(context.Background(), "service.other", map[string]any{"region": "eu-west"}, "", "a1")
	require.NoError(t, err)

	results, err := s.Query(context.Background(), "$.region")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestViewMissingKeyReturnsNotFound(t *testing.T) {
	s := New(memory.NewContextEntryStore(), nil, nil, nil)
	_, err := s.View(context.Background(), "missing")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.NotFound, appErr.Kind)
}
