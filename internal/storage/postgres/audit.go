package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// AuditStore is the Postgres-backed storage.AuditStore implementation.
type AuditStore struct {
	db sqlx.ExtContext
}

// NewAuditStore wraps db for audit-log persistence.
func NewAuditStore(db sqlx.ExtContext) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, e storage.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (subject, tool, outcome, detail, request_id) VALUES ($1, $2, $3, $4, $5)
	`, e.Subject, e.Tool, e.Outcome, e.Detail, e.RequestID)
	if err != nil {
		return fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return nil
}
