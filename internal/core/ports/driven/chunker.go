package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// Chunker splits a document's pages into chunks that never cross a page.
type Chunker interface {
	// Name identifies the chunking strategy.
	Name() string

	// Chunk splits pages for the given document. Chunk indexes are
	// contiguous from 0 across the whole document.
	Chunk(ctx context.Context, pages []domain.PageContent, documentID string) (*domain.ChunkResult, error)
}
