package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// DocumentStatusStore persists documents and their processing state.
type DocumentStatusStore interface {
	// Create saves a new document record.
	Create(ctx context.Context, doc *domain.DocumentRecord) error

	// Get retrieves a document record by ID.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// UpdateState replaces a document's processing state.
	// Returns domain.ErrInvalidTransition if the stored state is terminal.
	UpdateState(ctx context.Context, id string, state domain.DocumentProcessingState) error

	// ListByStatus returns documents currently in the given status.
	ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.DocumentRecord, error)
}
