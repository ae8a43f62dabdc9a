// Package writequeue serializes durable writes through a single goroutine so
// that storage mutations are applied strictly in submission order.
package writequeue

import (
	"context"
	"fmt"
)

// Job is a unit of durable work submitted to the queue.
type Job func(ctx context.Context) error

type request struct {
	job    Job
	result chan error
}

// Queue is a FIFO serializer: jobs submitted concurrently still execute one
// at a time, in the order they were submitted.
type Queue struct {
	requests chan request
	done     chan struct{}
}

// New starts the queue's worker goroutine. depth bounds how many pending
// writes may be buffered before Submit blocks.
func New(depth int) *Queue {
	if depth <= 0 {
		depth = 64
	}
	q := &Queue{
		requests: make(chan request, depth),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for req := range q.requests {
		req.result <- req.job(context.Background())
	}
}

// Submit enqueues job and returns a future resolved once the job has run.
// The returned channel receives exactly one value.
func (q *Queue) Submit(ctx context.Context, job Job) <-chan error {
	result := make(chan error, 1)
	req := request{job: job, result: result}

	select {
	case q.requests <- req:
	case <-ctx.Done():
		result <- fmt.Errorf("writequeue: submit cancelled: %w", ctx.Err())
	}
	return result
}

// SubmitWait enqueues job and blocks until it completes or ctx is cancelled.
func (q *Queue) SubmitWait(ctx context.Context, job Job) error {
	result := q.Submit(ctx, job)
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the number of jobs currently buffered and awaiting
// execution. Used by the health endpoint to surface backlog.
func (q *Queue) Depth() int {
	return len(q.requests)
}

// Close stops accepting new jobs and waits for the queue to drain.
func (q *Queue) Close() {
	close(q.requests)
	<-q.done
}
