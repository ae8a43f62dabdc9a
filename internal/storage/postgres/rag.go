package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// RAGStore is the Postgres-backed storage.RAGStore implementation. Vectors
// are stored via the pgvector extension's text literal form ("[0.1,0.2,...]")
// since database/sql has no native vector type.
type RAGStore struct {
	db sqlx.ExtContext
}

// NewRAGStore wraps db for RAG chunk/embedding persistence.
func NewRAGStore(db sqlx.ExtContext) *RAGStore {
	return &RAGStore{db: db}
}

func (s *RAGStore) PutChunk(ctx context.Context, c domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_chunks (chunk_id, source_type, source_ref, text, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chunk_id) DO UPDATE SET text = EXCLUDED.text, content_hash = EXCLUDED.content_hash
	`, c.ChunkID, string(c.SourceType), c.SourceRef, c.Text, c.ContentHash, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put chunk %s: %w", c.ChunkID, err)
	}
	return nil
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *RAGStore) PutEmbedding(ctx context.Context, e domain.Embedding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_embeddings (chunk_id, vector) VALUES ($1, $2)
		ON CONFLICT (chunk_id) DO UPDATE SET vector = EXCLUDED.vector
	`, e.ChunkID, vectorLiteral(e.Vector))
	if err != nil {
		return fmt.Errorf("postgres: put embedding %s: %w", e.ChunkID, err)
	}
	return nil
}

func (s *RAGStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := sqlx.SelectContext(ctx, s.db, &out, `
		SELECT chunk_id, source_type, source_ref, text, content_hash, created_at FROM rag_chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: all chunks: %w", err)
	}
	return out, nil
}

func (s *RAGStore) AllEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	var rows []struct {
		ChunkID string `db:"chunk_id"`
		Vector  string `db:"vector"`
	}
	err := sqlx.SelectContext(ctx, s.db, &rows, `SELECT chunk_id, vector::text AS vector FROM rag_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: all embeddings: %w", err)
	}
	out := make([]domain.Embedding, len(rows))
	for i, r := range rows {
		out[i] = domain.Embedding{ChunkID: r.ChunkID, Vector: parseVectorLiteral(r.Vector)}
	}
	return out, nil
}

func parseVectorLiteral(s string) []float32 {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		var f float64
		fmt.Sscanf(p, "%g", &f)
		out = append(out, float32(f))
	}
	return out
}

func (s *RAGStore) SaveCheckpoint(ctx context.Context, c domain.IndexerCheckpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_meta (source_type, cursor, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (source_type) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at
	`, string(c.SourceType), c.Cursor, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint %s: %w", c.SourceType, err)
	}
	return nil
}

func (s *RAGStore) Checkpoint(ctx context.Context, sourceType domain.SourceType) (domain.IndexerCheckpoint, bool, error) {
	var row struct {
		SourceType string       `db:"source_type"`
		Cursor     string       `db:"cursor"`
		UpdatedAt  sql.NullTime `db:"updated_at"`
	}
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT source_type, cursor, updated_at FROM rag_meta WHERE source_type = $1`, string(sourceType))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexerCheckpoint{}, false, nil
	}
	if err != nil {
		return domain.IndexerCheckpoint{}, false, fmt.Errorf("postgres: checkpoint %s: %w", sourceType, err)
	}
	return domain.IndexerCheckpoint{
		SourceType: domain.SourceType(row.SourceType),
		Cursor:     row.Cursor,
		UpdatedAt:  row.UpdatedAt.Time,
	}, true, nil
}
