package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

func taskForIndexing(id, title, description string) domain.Task {
	return domain.Task{
		TaskID:      id,
		Title:       title,
		Description: description,
		Status:      domain.TaskPending,
		Priority:    domain.PriorityMedium,
		CreatedBy:   "tester",
	}
}

type countingEmbedder struct {
	dim   int
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, c.dim)
		out[i][0] = 1
	}
	return out, nil
}
func (c *countingEmbedder) Dimension() int { return c.dim }

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}
func (failingEmbedder) Dimension() int { return 3 }

func newTestIndexer(t *testing.T, embedder EmbeddingProvider) (*Indexer, storage.Stores) {
	t.Helper()
	stores := memory.NewStores()
	scanner := NewScanner("", stores)
	return NewIndexer(scanner, stores.RAG, embedder, logger.NewDefault("rag-test")), stores
}

func TestRunCycleIndexesDerivedTaskContent(t *testing.T) {
	embedder := &countingEmbedder{dim: 3}
	ix, stores := newTestIndexer(t, embedder)
	ctx := context.Background()

	require.NoError(t, stores.Tasks.Create(ctx, taskForIndexing("t1", "Ship the release", "write release notes")))

	ix.RunCycle(ctx)

	chunks, err := stores.RAG.AllChunks(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, 1, embedder.calls)
}

func TestRunCycleSkipsAlreadyIndexedContentOnSecondPass(t *testing.T) {
	embedder := &countingEmbedder{dim: 3}
	ix, stores := newTestIndexer(t, embedder)
	ctx := context.Background()

	require.NoError(t, stores.Tasks.Create(ctx, taskForIndexing("t1", "Ship the release", "write release notes")))

	ix.RunCycle(ctx)
	firstCallCount := embedder.calls
	ix.RunCycle(ctx)

	assert.Equal(t, firstCallCount, embedder.calls, "unchanged content must not be re-embedded on the next cycle")
}

func TestRunCycleCoalescesConcurrentTriggers(t *testing.T) {
	ix, _ := newTestIndexer(t, &countingEmbedder{dim: 3})
	ix.running = true

	ix.RunCycle(context.Background())

	assert.True(t, ix.running, "RunCycle must return immediately, leaving the in-flight cycle's state untouched")
}

func TestRunCycleStopsCleanlyWhenEmbeddingFails(t *testing.T) {
	ix, stores := newTestIndexer(t, failingEmbedder{})
	ctx := context.Background()

	require.NoError(t, stores.Tasks.Create(ctx, taskForIndexing("t1", "Ship the release", "write release notes")))

	assert.NotPanics(t, func() { ix.RunCycle(ctx) })

	chunks, err := stores.RAG.AllChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks, "failed batch must not persist partial chunks")
}
