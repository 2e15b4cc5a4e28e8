package driving

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// IngestionService accepts documents for processing and reports their state.
type IngestionService interface {
	// Submit records a pending document and queues it for processing.
	// It returns as soon as the job is queued.
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitAck, error)

	// Status returns the document and its current processing state.
	Status(ctx context.Context, documentID string) (*domain.DocumentRecord, error)
}
