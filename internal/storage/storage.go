// Package storage defines the persistence interfaces used by every domain
// package. Two implementations exist: storage/memory (default, in-process)
// and storage/postgres (durable, sqlx-backed).
package storage

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// AgentStore persists Agent records.
type AgentStore interface {
	Create(ctx context.Context, a domain.Agent) error
	Get(ctx context.Context, agentID string) (domain.Agent, bool, error)
	Update(ctx context.Context, a domain.Agent) error
	Delete(ctx context.Context, agentID string) error
	List(ctx context.Context) ([]domain.Agent, error)
}

// TaskStore persists Task records.
type TaskStore interface {
	Create(ctx context.Context, t domain.Task) error
	Get(ctx context.Context, taskID string) (domain.Task, bool, error)
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, taskID string) error
	List(ctx context.Context) ([]domain.Task, error)
	Children(ctx context.Context, parentTaskID string) ([]domain.Task, error)
}

// FileClaimStore persists the file-coordination claim table.
type FileClaimStore interface {
	Claim(ctx context.Context, c domain.FileClaim) error
	Release(ctx context.Context, filePath, agentID string) error
	Get(ctx context.Context, filePath string) (domain.FileClaim, bool, error)
	List(ctx context.Context) ([]domain.FileClaim, error)
}

// MessageStore persists agent-to-agent and broadcast messages.
type MessageStore interface {
	Append(ctx context.Context, m domain.AgentMessage) error
	ListFor(ctx context.Context, agentID string, since int) ([]domain.AgentMessage, error)
	All(ctx context.Context) ([]domain.AgentMessage, error)
}

// ContextEntryStore persists the project context key/value store and its history.
type ContextEntryStore interface {
	Put(ctx context.Context, e domain.ContextEntry) error
	Get(ctx context.Context, contextKey string) (domain.ContextEntry, bool, error)
	List(ctx context.Context) ([]domain.ContextEntry, error)
	AppendHistory(ctx context.Context, h domain.ContextHistoryEntry) error
	History(ctx context.Context, contextKey string) ([]domain.ContextHistoryEntry, error)
}

// RAGStore persists indexed chunks, their embeddings, and indexer checkpoints.
type RAGStore interface {
	PutChunk(ctx context.Context, c domain.Chunk) error
	PutEmbedding(ctx context.Context, e domain.Embedding) error
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
	AllEmbeddings(ctx context.Context) ([]domain.Embedding, error)
	SaveCheckpoint(ctx context.Context, c domain.IndexerCheckpoint) error
	Checkpoint(ctx context.Context, sourceType domain.SourceType) (domain.IndexerCheckpoint, bool, error)
}

// TokenRecord is the durable record behind an issued bearer token.
type TokenRecord struct {
	Token     string
	AgentID   string
	Role      string
	Revoked   bool
}

// TokenStore persists issued bearer tokens.
type TokenStore interface {
	Issue(ctx context.Context, t TokenRecord) error
	Revoke(ctx context.Context, token string) error
	All(ctx context.Context) ([]TokenRecord, error)
}

// AuditEntry is one row of the append-only audit log. RequestID correlates
// the row back to the CallResult the dispatcher returned for the same
// invocation, per spec.md §4.B.
type AuditEntry struct {
	Subject   string
	Tool      string
	Outcome   string
	Detail    string
	RequestID string
}

// AuditStore persists the append-only audit trail of dispatched tool calls.
type AuditStore interface {
	Append(ctx context.Context, e AuditEntry) error
}

// Transactor runs fn against a Stores bundle scoped to a single atomic
// unit of work. The multi-row operations named in spec.md §5 (reorder,
// bulk updates, agent termination with claim release, task deletion with
// descendant checks) go through WithinTx so a concurrent writer touching
// the same rows either serializes cleanly or loses and retries; an
// implementation that exhausts its retry bound fails with Conflict
// instead of applying a partial write.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// Stores bundles every store interface the server depends on.
type Stores struct {
	Agents   AgentStore
	Tasks    TaskStore
	Claims   FileClaimStore
	Messages MessageStore
	Context  ContextEntryStore
	RAG      RAGStore
	Tokens   TokenStore
	Audit    AuditStore
	Tx       Transactor
}
