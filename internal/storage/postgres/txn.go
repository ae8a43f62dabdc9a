package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// maxTxRetries bounds how many times WithinTx retries a transaction that
// lost a serialization race before it gives up with Conflict, per
// spec.md §5.
const maxTxRetries = 3

// transactor runs multi-row operations inside a real sql.Tx at
// serializable isolation, retrying the whole operation when Postgres
// reports a serialization failure or deadlock.
type transactor struct {
	db *sqlx.DB
}

func newTransactor(db *sqlx.DB) *transactor {
	return &transactor{db: db}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Stores) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxTxRetries; attempt++ {
		tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return apperrors.Wrap(apperrors.Internal, "begin transaction", err)
		}

		if err := fn(ctx, storesFromTx(tx)); err != nil {
			_ = tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return apperrors.Wrap(apperrors.Internal, "commit transaction", err)
		}
		return nil
	}
	return apperrors.Wrap(apperrors.Conflict, "transaction lost the serialization race too many times", lastErr)
}

// storesFromTx rebuilds the full store bundle bound to tx instead of the
// pool, so a handler pulled out of the closure (e.g. txStores.Tasks) reads
// and writes within the same transaction as everything else in fn.
func storesFromTx(tx *sqlx.Tx) storage.Stores {
	return storage.Stores{
		Agents:   NewAgentStore(tx),
		Tasks:    NewTaskStore(tx),
		Claims:   NewFileClaimStore(tx),
		Messages: NewMessageStore(tx),
		Context:  NewContextEntryStore(tx),
		RAG:      NewRAGStore(tx),
		Tokens:   NewTokenStore(tx),
		Audit:    NewAuditStore(tx),
	}
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}
