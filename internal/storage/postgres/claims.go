package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// FileClaimStore is the Postgres-backed storage.FileClaimStore implementation.
type FileClaimStore struct {
	db sqlx.ExtContext
}

// NewFileClaimStore wraps db for file-claim persistence.
func NewFileClaimStore(db sqlx.ExtContext) *FileClaimStore {
	return &FileClaimStore{db: db}
}

func (s *FileClaimStore) Claim(ctx context.Context, c domain.FileClaim) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_claims (file_path, agent_id, claimed_at) VALUES ($1, $2, $3)
		ON CONFLICT (file_path) DO UPDATE SET agent_id = EXCLUDED.agent_id, claimed_at = EXCLUDED.claimed_at
		WHERE file_claims.agent_id = EXCLUDED.agent_id
	`, c.FilePath, c.AgentID, c.ClaimedAt)
	if err != nil {
		return fmt.Errorf("postgres: claim %s: %w", c.FilePath, err)
	}
	return nil
}

func (s *FileClaimStore) Release(ctx context.Context, filePath, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_claims WHERE file_path = $1 AND agent_id = $2`, filePath, agentID)
	if err != nil {
		return fmt.Errorf("postgres: release %s: %w", filePath, err)
	}
	return nil
}

func (s *FileClaimStore) Get(ctx context.Context, filePath string) (domain.FileClaim, bool, error) {
	var c domain.FileClaim
	err := sqlx.GetContext(ctx, s.db, &c, `SELECT file_path, agent_id, claimed_at FROM file_claims WHERE file_path = $1`, filePath)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FileClaim{}, false, nil
	}
	if err != nil {
		return domain.FileClaim{}, false, fmt.Errorf("postgres: get claim %s: %w", filePath, err)
	}
	return c, true, nil
}

func (s *FileClaimStore) List(ctx context.Context) ([]domain.FileClaim, error) {
	var out []domain.FileClaim
	err := sqlx.SelectContext(ctx, s.db, &out, `SELECT file_path, agent_id, claimed_at FROM file_claims ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list claims: %w", err)
	}
	return out, nil
}
