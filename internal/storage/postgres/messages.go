package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// MessageStore is the Postgres-backed storage.MessageStore implementation.
type MessageStore struct {
	db sqlx.ExtContext
}

// NewMessageStore wraps db for message persistence.
func NewMessageStore(db sqlx.ExtContext) *MessageStore {
	return &MessageStore{db: db}
}

type messageRow struct {
	MessageID string         `db:"message_id"`
	FromAgent string         `db:"from_agent"`
	ToAgent   sql.NullString `db:"to_agent"`
	Payload   string         `db:"payload"`
	SentAt    sql.NullTime   `db:"sent_at"`
	ReadAt    sql.NullTime   `db:"read_at"`
}

func (r messageRow) toDomain() domain.AgentMessage {
	m := domain.AgentMessage{
		MessageID: r.MessageID,
		FromAgent: r.FromAgent,
		Payload:   r.Payload,
		SentAt:    r.SentAt.Time,
	}
	if r.ToAgent.Valid {
		m.ToAgent = &r.ToAgent.String
	}
	if r.ReadAt.Valid {
		m.ReadAt = &r.ReadAt.Time
	}
	return m
}

func (s *MessageStore) Append(ctx context.Context, m domain.AgentMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_messages (message_id, from_agent, to_agent, payload, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.MessageID, m.FromAgent, m.ToAgent, m.Payload, m.SentAt, m.ReadAt)
	if err != nil {
		return fmt.Errorf("postgres: append message %s: %w", m.MessageID, err)
	}
	return nil
}

// ListFor returns messages addressed to agentID or broadcast, ordered by
// sent_at, skipping the first since+1 of those rows (since = -1 starts from
// the beginning). The offset counts only rows matching agentID, whereas the
// in-memory store's index counts every stored message.
func (s *MessageStore) ListFor(ctx context.Context, agentID string, since int) ([]domain.AgentMessage, error) {
	var rows []messageRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT message_id, from_agent, to_agent, payload, sent_at, read_at
		FROM agent_messages
		WHERE (to_agent = $1 OR to_agent IS NULL)
		ORDER BY sent_at
		OFFSET $2
	`, agentID, since+1)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages for %s: %w", agentID, err)
	}
	out := make([]domain.AgentMessage, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// All returns every stored message, used by the RAG scanner to index the
// full message corpus regardless of recipient.
func (s *MessageStore) All(ctx context.Context) ([]domain.AgentMessage, error) {
	var rows []messageRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT message_id, from_agent, to_agent, payload, sent_at, read_at
		FROM agent_messages
		ORDER BY sent_at
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all messages: %w", err)
	}
	out := make([]domain.AgentMessage, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
