package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	// StoreChunks saves a batch of chunks with embeddings. Per-chunk failures
	// are reported in the result; an error is returned only when the batch
	// could not be attempted at all.
	StoreChunks(ctx context.Context, req domain.StoreRequest) (*domain.StoreResult, error)

	// DeleteDocumentChunks removes every chunk of a document.
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	// CountChunks returns the number of chunks stored for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)
}
