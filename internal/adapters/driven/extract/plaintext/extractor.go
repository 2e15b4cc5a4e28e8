// Package plaintext extracts pages from plain text files.
//
// A form feed character starts a new page, which is how paginated text
// exports mark page breaks. Files without form feeds are a single page.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// PageBreak separates pages in paginated text.
const PageBreak = "\f"

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "plaintext"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".text", ".log"}
}

// Extract splits the text into pages on form feeds.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return &domain.ExtractionResult{Error: filename + ": not valid UTF-8 text"}, nil
	}
	return Paginate(string(data)), nil
}

// Paginate splits text on form feeds into numbered pages. Blank pages keep
// their number so later page numbers match the source. A text with no
// non-blank page is an unsuccessful result.
func Paginate(text string) *domain.ExtractionResult {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	parts := strings.Split(text, PageBreak)
	pages := make([]domain.PageContent, 0, len(parts))
	usable := false
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			usable = true
		}
		pages = append(pages, domain.PageContent{PageNumber: i + 1, Text: part})
	}

	if !usable {
		return &domain.ExtractionResult{Error: "document contains no text"}
	}
	return &domain.ExtractionResult{Success: true, Pages: pages}
}
