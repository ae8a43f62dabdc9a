package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// DefaultTopK and MaxTopK bound ask_project_rag's top_k argument per
// spec.md §6 ("default 13, bounded"); a value above MaxTopK is clamped,
// not rejected, per spec.md §8's boundary-behavior table.
const (
	DefaultTopK = 13
	MaxTopK     = 50
	// MinSimilarityThreshold below which no chunk is considered relevant
	// enough to synthesize an answer from; ties to the confidence formula.
	MinSimilarityThreshold = 0.15
	systemPrompt           = "You are answering questions about this project using only the provided context chunks. Cite sources by their source_ref. Do not invent facts absent from the context."
)

// Engine answers ask_project_rag queries against chunks and embeddings
// already indexed by Indexer.
type Engine struct {
	store    storage.RAGStore
	embedder EmbeddingProvider
	chat     ChatProvider
}

// NewEngine builds a query Engine over an already-populated RAGStore.
func NewEngine(store storage.RAGStore, embedder EmbeddingProvider, chat ChatProvider) *Engine {
	return &Engine{store: store, embedder: embedder, chat: chat}
}

// Ask implements the five-step ask_project_rag contract of spec.md §4.H.
func (e *Engine) Ask(ctx context.Context, query string, topK int, sourceFilter domain.SourceType) (domain.AnswerResult, error) {
	if query == "" {
		return domain.AnswerResult{}, apperrors.FieldError("query", "required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if len(vectors) == 0 {
		return domain.AnswerResult{}, apperrors.New(apperrors.Internal, "embedding provider returned no vector for query")
	}
	queryVec := vectors[0]

	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return domain.AnswerResult{}, apperrors.Wrap(apperrors.Internal, "load chunks", err)
	}
	embeddings, err := e.store.AllEmbeddings(ctx)
	if err != nil {
		return domain.AnswerResult{}, apperrors.Wrap(apperrors.Internal, "load embeddings", err)
	}
	byChunkID := make(map[string][]float32, len(embeddings))
	for _, emb := range embeddings {
		byChunkID[emb.ChunkID] = emb.Vector
	}

	var scored []domain.ScoredChunk
	for _, c := range chunks {
		if sourceFilter != "" && c.SourceType != sourceFilter {
			continue
		}
		vec, ok := byChunkID[c.ChunkID]
		if !ok {
			continue
		}
		scored = append(scored, domain.ScoredChunk{Chunk: c, Similarity: cosineSimilarity(queryVec, vec)})
	}

	sortScored(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}

	if len(scored) == 0 || scored[0].Similarity < MinSimilarityThreshold {
		return domain.AnswerResult{LowConfidence: true, Confidence: confidenceFromTopK(scored)}, nil
	}

	messages := make([]string, 0, len(scored)+1)
	messages = append(messages, "Question: "+query)
	sources := make([]string, 0, len(scored))
	contextKeys := make([]string, 0, len(scored))
	for _, s := range scored {
		messages = append(messages, fmt.Sprintf("[%s] %s", s.Chunk.SourceRef, s.Chunk.Text))
		sources = append(sources, s.Chunk.SourceRef)
		if s.Chunk.SourceType == domain.SourceContext {
			contextKeys = append(contextKeys, strings.TrimPrefix(s.Chunk.SourceRef, "context:"))
		}
	}

	answer, err := e.chat.Complete(ctx, systemPrompt, messages)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	return domain.AnswerResult{
		Answer:           answer,
		Sources:          sources,
		Confidence:       confidenceFromTopK(scored),
		ContextKeysUsed:  contextKeys,
		SuggestedQueries: suggestRelated(scored, query),
	}, nil
}

// cosineSimilarity returns the cosine similarity of a and b, computed in Go.
// Both storage backends hand back every stored embedding and the query path
// scores them here, so results do not depend on the backend.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortScored orders results by similarity desc, then created_at desc,
// then shorter source_ref, the deterministic tie-break spec.md §4.H names.
func sortScored(scored []domain.ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if !scored[i].Chunk.CreatedAt.Equal(scored[j].Chunk.CreatedAt) {
			return scored[i].Chunk.CreatedAt.After(scored[j].Chunk.CreatedAt)
		}
		return len(scored[i].Chunk.SourceRef) < len(scored[j].Chunk.SourceRef)
	})
}

// confidenceFromTopK resolves the Open Question in spec.md §9: confidence
// is the top similarity score clamped into [0,1], since normalized
// embeddings already yield cosine similarities in that range for
// semantically related text.
func confidenceFromTopK(scored []domain.ScoredChunk) float64 {
	if len(scored) == 0 {
		return 0
	}
	top := scored[0].Similarity
	if top < 0 {
		return 0
	}
	if top > 1 {
		return 1
	}
	return top
}

// suggestRelated proposes follow-up queries from the source refs of the
// next-best chunks not already central to the answer, a lightweight
// heuristic rather than a second model call.
func suggestRelated(scored []domain.ScoredChunk, query string) []string {
	var out []string
	seen := map[string]bool{query: true}
	for _, s := range scored {
		suggestion := "more about " + s.Chunk.SourceRef
		if !seen[suggestion] {
			seen[suggestion] = true
			out = append(out, suggestion)
		}
		if len(out) >= 3 {
			break
		}
	}
	return out
}
