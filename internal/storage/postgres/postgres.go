// Package postgres implements every storage interface over a shared
// *sqlx.DB connection pool.
package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// NewStores builds a complete storage.Stores bundle backed by db.
func NewStores(db *sqlx.DB) storage.Stores {
	return storage.Stores{
		Agents:   NewAgentStore(db),
		Tasks:    NewTaskStore(db),
		Claims:   NewFileClaimStore(db),
		Messages: NewMessageStore(db),
		Context:  NewContextEntryStore(db),
		RAG:      NewRAGStore(db),
		Tokens:   NewTokenStore(db),
		Audit:    NewAuditStore(db),
		Tx:       newTransactor(db),
	}
}
