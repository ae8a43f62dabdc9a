package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// ContextEntryStore is the Postgres-backed storage.ContextEntryStore implementation.
type ContextEntryStore struct {
	db sqlx.ExtContext
}

// NewContextEntryStore wraps db for context persistence.
func NewContextEntryStore(db sqlx.ExtContext) *ContextEntryStore {
	return &ContextEntryStore{db: db}
}

func (s *ContextEntryStore) Put(ctx context.Context, e domain.ContextEntry) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("postgres: marshal context value for %s: %w", e.ContextKey, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context_entries (key, value, description, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description,
			updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, e.ContextKey, value, e.Description, e.UpdatedBy, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put context %s: %w", e.ContextKey, err)
	}
	return nil
}

type contextRow struct {
	Key         string       `db:"key"`
	Value       []byte       `db:"value"`
	Description string       `db:"description"`
	UpdatedBy   string       `db:"updated_by"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

func (r contextRow) toDomain() (domain.ContextEntry, error) {
	e := domain.ContextEntry{
		ContextKey:  r.Key,
		Description: r.Description,
		UpdatedBy:   r.UpdatedBy,
		UpdatedAt:   r.UpdatedAt.Time,
	}
	if len(r.Value) > 0 {
		if err := json.Unmarshal(r.Value, &e.Value); err != nil {
			return domain.ContextEntry{}, fmt.Errorf("postgres: unmarshal context value %s: %w", r.Key, err)
		}
	}
	return e, nil
}

func (s *ContextEntryStore) Get(ctx context.Context, contextKey string) (domain.ContextEntry, bool, error) {
	var row contextRow
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT key, value, description, updated_by, updated_at FROM context_entries WHERE key = $1`, contextKey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContextEntry{}, false, nil
	}
	if err != nil {
		return domain.ContextEntry{}, false, fmt.Errorf("postgres: get context %s: %w", contextKey, err)
	}
	e, err := row.toDomain()
	return e, true, err
}

func (s *ContextEntryStore) List(ctx context.Context) ([]domain.ContextEntry, error) {
	var rows []contextRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `SELECT key, value, description, updated_by, updated_at FROM context_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list context: %w", err)
	}
	out := make([]domain.ContextEntry, len(rows))
	for i, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (s *ContextEntryStore) AppendHistory(ctx context.Context, h domain.ContextHistoryEntry) error {
	value, err := json.Marshal(h.Value)
	if err != nil {
		return fmt.Errorf("postgres: marshal context history value for %s: %w", h.ContextKey, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context_history (key, value, updated_by, updated_at) VALUES ($1, $2, $3, $4)
	`, h.ContextKey, value, h.UpdatedBy, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append context history %s: %w", h.ContextKey, err)
	}
	return nil
}

func (s *ContextEntryStore) History(ctx context.Context, contextKey string) ([]domain.ContextHistoryEntry, error) {
	var rows []struct {
		Key       string       `db:"key"`
		Value     []byte       `db:"value"`
		UpdatedBy string       `db:"updated_by"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT key, value, updated_by, updated_at FROM context_history WHERE key = $1 ORDER BY id
	`, contextKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: context history %s: %w", contextKey, err)
	}
	out := make([]domain.ContextHistoryEntry, len(rows))
	for i, r := range rows {
		h := domain.ContextHistoryEntry{ContextKey: r.Key, UpdatedBy: r.UpdatedBy, UpdatedAt: r.UpdatedAt.Time}
		if len(r.Value) > 0 {
			if err := json.Unmarshal(r.Value, &h.Value); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal context history value %s: %w", r.Key, err)
			}
		}
		out[i] = h
	}
	return out, nil
}
