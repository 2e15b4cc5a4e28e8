package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// Extractor turns raw document bytes into pages of text.
type Extractor interface {
	// Name identifies the extractor for logging.
	Name() string

	// Extensions lists the lower-case file extensions handled, including the dot.
	Extensions() []string

	// Extract returns the pages of the document. A document that cannot be
	// read yields a result with Success=false rather than an error.
	Extract(ctx context.Context, data []byte, filename string) (*domain.ExtractionResult, error)
}

// ExtractorRegistry selects an Extractor for a filename.
type ExtractorRegistry interface {
	// Register adds an extractor for its extensions.
	Register(e Extractor)

	// Get returns the extractor for the filename's extension.
	// Returns domain.ErrUnsupportedFormat if none is registered.
	Get(filename string) (Extractor, error)
}
