package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
)

type stubEmbedder struct {
	vector []float32
	dim    int
}

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}
func (s stubEmbedder) Dimension() int { return s.dim }

type stubChat struct{ answer string }

func (s stubChat) Complete(ctx context.Context, systemPrompt string, messages []string) (string, error) {
	return s.answer, nil
}

func seedChunk(t *testing.T, store *memory.RAGStore, id, sourceRef string, vec []float32, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.PutChunk(context.Background(), domain.Chunk{
		ChunkID: id, SourceType: domain.SourceMarkdown, SourceRef: sourceRef, Text: "text for " + id, CreatedAt: createdAt,
	}))
	require.NoError(t, store.PutEmbedding(context.Background(), domain.Embedding{ChunkID: id, Vector: vec}))
}

func TestAskReturnsHighestSimilarityFirst(t *testing.T) {
	store := memory.NewRAGStore()
	seedChunk(t, store, "c1", "a.md", []float32{1, 0, 0}, time.Now())
	seedChunk(t, store, "c2", "b.md", []float32{0, 1, 0}, time.Now())

	engine := NewEngine(store, stubEmbedder{vector: []float32{1, 0, 0}, dim: 3}, stubChat{answer: "the answer"})
	result, err := engine.Ask(context.Background(), "what is a.md about", 5, "")
	require.NoError(t, err)
	assert.False(t, result.LowConfidence)
	assert.Equal(t, "the answer", result.Answer)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "a.md", result.Sources[0])
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestAskReturnsLowConfidenceWhenNoChunksAreSimilar(t *testing.T) {
	store := memory.NewRAGStore()
	seedChunk(t, store, "c1", "a.md", []float32{0, 0, 1}, time.Now())

	engine := NewEngine(store, stubEmbedder{vector: []float32{1, 0, 0}, dim: 3}, stubChat{answer: "should not be used"})
	result, err := engine.Ask(context.Background(), "unrelated query", 5, "")
	require.NoError(t, err)
	assert.True(t, result.LowConfidence)
	assert.Empty(t, result.Answer)
}

func TestAskClampsTopKAboveMax(t *testing.T) {
	store := memory.NewRAGStore()
	for i := 0; i < 5; i++ {
		seedChunk(t, store, string(rune('a'+i)), "doc.md", []float32{1, 0, 0}, time.Now())
	}
	engine := NewEngine(store, stubEmbedder{vector: []float32{1, 0, 0}, dim: 3}, stubChat{answer: "ok"})
	result, err := engine.Ask(context.Background(), "q", MaxTopK+100, "")
	require.NoError(t, err)
	assert.False(t, result.LowConfidence)
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 0.0001)
}

func TestCosineSimilarityOrthogonalVectorsIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.0001)
}
