package memory

import "github.com/conclave-mcp/orchestrator/internal/storage"

// NewStores builds a complete storage.Stores bundle backed entirely by the
// in-memory implementations in this package. This is the default backend
// when no Postgres DSN is configured.
func NewStores() storage.Stores {
	s := storage.Stores{
		Agents:   NewAgentStore(),
		Tasks:    NewTaskStore(),
		Claims:   NewFileClaimStore(),
		Messages: NewMessageStore(),
		Context:  NewContextEntryStore(),
		RAG:      NewRAGStore(),
		Tokens:   NewTokenStore(),
		Audit:    NewAuditStore(),
	}
	s.Tx = newTransactor(s)
	return s
}
