package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// Default worker values.
const (
	DefaultWorkerConcurrency = 2
	dequeueRetryDelay        = time.Second
)

// InterruptedMessage is recorded on documents whose run was cut short.
const InterruptedMessage = "processing interrupted"

// Worker consumes ingestion jobs with a fixed number of goroutines.
type Worker struct {
	queue       driven.IngestionQueue
	processor   JobProcessor
	statuses    driven.DocumentStatusStore
	concurrency int
}

// NewWorker creates a worker. concurrency <= 0 uses DefaultWorkerConcurrency.
func NewWorker(queue driven.IngestionQueue, processor JobProcessor, statuses driven.DocumentStatusStore, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = DefaultWorkerConcurrency
	}
	return &Worker{
		queue:       queue,
		processor:   processor,
		statuses:    statuses,
		concurrency: concurrency,
	}
}

// Run consumes jobs until ctx is done or the queue is closed and drained.
// Cancelling ctx stops picking up new jobs but never interrupts one that
// already started.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Starting %d ingestion workers", w.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		id := i
		g.Go(func() error {
			return w.loop(gctx, id)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) error {
	for {
		job, err := w.queue.Dequeue(ctx)
		switch {
		case errors.Is(err, domain.ErrQueueClosed):
			logger.Debug("worker %d: queue closed", id)
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Warn("worker %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}

		w.handle(ctx, id, job)
	}
}

// handle runs one job detached from ctx so shutdown cannot cut it short.
func (w *Worker) handle(ctx context.Context, id int, job domain.IngestionJob) {
	start := time.Now()
	logger.Debug("worker %d: processing %s", id, job.DocumentID)
	if err := w.processor.Process(context.WithoutCancel(ctx), job); err != nil {
		logger.Warnw("job failed", "worker", id, "document_id", job.DocumentID,
			"elapsed", time.Since(start).Round(time.Millisecond), "error", err)
		return
	}
	logger.Debug("worker %d: document %s done in %s", id, job.DocumentID, time.Since(start).Round(time.Millisecond))
}

// RecoverStale marks documents left in processing by a previous run as
// failed at the stage they were in. It returns how many were marked.
func (w *Worker) RecoverStale(ctx context.Context) (int, error) {
	docs, err := w.statuses.ListByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}

	recovered := 0
	for _, doc := range docs {
		stage := doc.State.Stage
		if stage == "" {
			stage = domain.StageDownloading
		}
		state := doc.State
		state.Status = domain.StatusFailed
		state.Stage = stage.Failed()
		state.ErrorMessage = InterruptedMessage

		if err := w.statuses.UpdateState(ctx, doc.ID, state); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue // finished in the meantime
			}
			return recovered, fmt.Errorf("mark document %s interrupted: %w", doc.ID, err)
		}
		logger.Warn("Document %s was interrupted at %s", doc.ID, stage)
		recovered++
	}
	return recovered, nil
}
