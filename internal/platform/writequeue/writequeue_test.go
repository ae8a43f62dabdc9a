package writequeue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitWaitRunsEveryConcurrentJob(t *testing.T) {
	q := New(4)
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			err := q.SubmitWait(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
		// Stagger submission so the order is deterministic enough to assert length.
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 5)
}

func TestSubmitWaitPropagatesJobError(t *testing.T) {
	q := New(1)
	defer q.Close()

	err := q.SubmitWait(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSubmitWithCancelledContextStillResolves(t *testing.T) {
	q := New(0)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// New(0) falls back to a 64-deep buffer, so both the send and the
	// cancelled ctx are ready and either branch may win; the future
	// resolves either way.
	result := q.Submit(ctx, func(ctx context.Context) error { return nil })
	select {
	case err := <-result:
		_ = err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation result")
	}
}
