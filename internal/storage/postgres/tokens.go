package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// TokenStore is the Postgres-backed storage.TokenStore implementation.
type TokenStore struct {
	db sqlx.ExtContext
}

// NewTokenStore wraps db for token persistence.
func NewTokenStore(db sqlx.ExtContext) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Issue(ctx context.Context, t storage.TokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, agent_id, role) VALUES ($1, $2, $3)
	`, t.Token, t.AgentID, t.Role)
	if err != nil {
		return fmt.Errorf("postgres: issue token for %s: %w", t.AgentID, err)
	}
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tokens SET revoked_at = now() WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("postgres: revoke token: %w", err)
	}
	return nil
}

func (s *TokenStore) All(ctx context.Context) ([]storage.TokenRecord, error) {
	var rows []struct {
		Token     string  `db:"token"`
		AgentID   string  `db:"agent_id"`
		Role      string  `db:"role"`
		RevokedAt *string `db:"revoked_at"`
	}
	err := sqlx.SelectContext(ctx, s.db, &rows, `SELECT token, agent_id, role, revoked_at::text AS revoked_at FROM tokens`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	out := make([]storage.TokenRecord, len(rows))
	for i, r := range rows {
		out[i] = storage.TokenRecord{Token: r.Token, AgentID: r.AgentID, Role: r.Role, Revoked: r.RevokedAt != nil}
	}
	return out, nil
}
