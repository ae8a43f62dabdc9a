// Package postgres implements the storage interfaces over a Postgres
// database via database/sql and jmoiron/sqlx, grounded on the teacher's
// store_postgres.go pattern (package secrets, package gasbank, etc).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// AgentStore is the Postgres-backed storage.AgentStore implementation. db
// is an sqlx.ExtContext rather than a concrete *sqlx.DB so the same store
// logic runs unmodified against either the pool or a transaction handed
// out by transactor.WithinTx.
type AgentStore struct {
	db sqlx.ExtContext
}

// NewAgentStore wraps db for agent persistence.
func NewAgentStore(db sqlx.ExtContext) *AgentStore {
	return &AgentStore{db: db}
}

type agentRow struct {
	AgentID      string         `db:"agent_id"`
	Token        string         `db:"token"`
	Capabilities pq.StringArray `db:"capabilities"`
	Status       string         `db:"status"`
	CurrentTask  sql.NullString `db:"current_task"`
	WorkingDir   string         `db:"working_dir"`
	Role         string         `db:"role"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

func (r agentRow) toDomain() domain.Agent {
	a := domain.Agent{
		AgentID:      r.AgentID,
		Token:        r.Token,
		Capabilities: []string(r.Capabilities),
		Status:       domain.AgentStatus(r.Status),
		WorkingDir:   r.WorkingDir,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
	if r.CurrentTask.Valid {
		a.CurrentTask = &r.CurrentTask.String
	}
	return a
}

func (s *AgentStore) Create(ctx context.Context, a domain.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, token, capabilities, status, current_task, working_dir, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.AgentID, a.Token, pq.Array(a.Capabilities), string(a.Status), a.CurrentTask, a.WorkingDir, a.Role, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create agent %s: %w", a.AgentID, err)
	}
	return nil
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (domain.Agent, bool, error) {
	var row agentRow
	err := sqlx.GetContext(ctx, s.db, &row, `
		SELECT agent_id, token, capabilities, status, current_task, working_dir, role, created_at, updated_at
		FROM agents WHERE agent_id = $1
	`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Agent{}, false, nil
	}
	if err != nil {
		return domain.Agent{}, false, fmt.Errorf("postgres: get agent %s: %w", agentID, err)
	}
	return row.toDomain(), true, nil
}

func (s *AgentStore) Update(ctx context.Context, a domain.Agent) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET token = $1, capabilities = $2, status = $3, current_task = $4,
		    working_dir = $5, role = $6, updated_at = $7
		WHERE agent_id = $8
	`, a.Token, pq.Array(a.Capabilities), string(a.Status), a.CurrentTask, a.WorkingDir, a.Role, a.UpdatedAt, a.AgentID)
	if err != nil {
		return fmt.Errorf("postgres: update agent %s: %w", a.AgentID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("postgres: agent %s not found", a.AgentID)
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("postgres: delete agent %s: %w", agentID, err)
	}
	return nil
}

func (s *AgentStore) List(ctx context.Context) ([]domain.Agent, error) {
	var rows []agentRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT agent_id, token, capabilities, status, current_task, working_dir, role, created_at, updated_at
		FROM agents ORDER BY agent_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agents: %w", err)
	}
	out := make([]domain.Agent, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
