package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// IngestionQueue hands ingestion jobs from the submitter to workers.
type IngestionQueue interface {
	// Enqueue adds a job. It does not wait for the job to run.
	Enqueue(ctx context.Context, job domain.IngestionJob) error

	// Dequeue blocks until a job is available or ctx is done.
	// Returns domain.ErrQueueClosed once the queue is closed and drained.
	Dequeue(ctx context.Context) (domain.IngestionJob, error)

	// Close stops accepting jobs.
	Close() error
}
