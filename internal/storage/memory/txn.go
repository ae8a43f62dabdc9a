package memory

import (
	"context"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// transactor serializes multi-row operations against an in-memory Stores
// bundle behind one mutex held for the whole of fn. Every caller already
// reaches this through the write queue's single goroutine, so contention
// here is only possible from a second in-process caller bypassing the
// queue; holding the lock for fn's entire duration means such a caller
// blocks rather than interleaves, and the retry-then-Conflict path the
// Postgres transactor needs never triggers.
type transactor struct {
	mu     sync.Mutex
	stores storage.Stores
}

func newTransactor(stores storage.Stores) *transactor {
	return &transactor{stores: stores}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, t.stores)
}
