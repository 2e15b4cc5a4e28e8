// Package memory provides an in-process ingestion queue backed by a buffered channel.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.IngestionQueue = (*Queue)(nil)

// DefaultCapacity is the buffer size used when none is given.
const DefaultCapacity = 100

// Queue is a bounded FIFO of ingestion jobs shared by goroutines in one process.
type Queue struct {
	mu     sync.RWMutex
	jobs   chan domain.IngestionJob
	closed bool
}

// New creates a queue holding up to capacity jobs.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{jobs: make(chan domain.IngestionJob, capacity)}
}

// Enqueue adds a job, blocking while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job domain.IngestionJob) error {
	// The read lock keeps Close from closing the channel mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a job is available. Jobs buffered before Close are
// still delivered.
func (q *Queue) Dequeue(ctx context.Context) (domain.IngestionJob, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return domain.IngestionJob{}, domain.ErrQueueClosed
		}
		return job, nil
	case <-ctx.Done():
		return domain.IngestionJob{}, ctx.Err()
	}
}

// Len returns the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs. It is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
