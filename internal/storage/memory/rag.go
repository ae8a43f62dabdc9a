package memory

import (
	"context"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// RAGStore is the in-memory storage.RAGStore implementation.
type RAGStore struct {
	mu          sync.RWMutex
	chunks      map[string]domain.Chunk
	embeddings  map[string]domain.Embedding
	checkpoints map[domain.SourceType]domain.IndexerCheckpoint
}

// NewRAGStore returns an empty RAGStore.
func NewRAGStore() *RAGStore {
	return &RAGStore{
		chunks:      make(map[string]domain.Chunk),
		embeddings:  make(map[string]domain.Embedding),
		checkpoints: make(map[domain.SourceType]domain.IndexerCheckpoint),
	}
}

func (s *RAGStore) PutChunk(ctx context.Context, c domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.ChunkID] = c
	return nil
}

func (s *RAGStore) PutEmbedding(ctx context.Context, e domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[e.ChunkID] = e
	return nil
}

func (s *RAGStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	return out, nil
}

func (s *RAGStore) AllEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Embedding, 0, len(s.embeddings))
	for _, e := range s.embeddings {
		out = append(out, e)
	}
	return out, nil
}

func (s *RAGStore) SaveCheckpoint(ctx context.Context, c domain.IndexerCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[c.SourceType] = c
	return nil
}

func (s *RAGStore) Checkpoint(ctx context.Context, sourceType domain.SourceType) (domain.IndexerCheckpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkpoints[sourceType]
	return c, ok, nil
}
