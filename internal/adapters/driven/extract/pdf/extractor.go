// Package pdf extracts page text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor reads the text layer of PDF documents page by page.
// Scanned PDFs without a text layer produce no usable pages.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "pdf"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract returns one PageContent per PDF page, numbered from 1. Pages whose
// text cannot be read are kept empty so numbering matches the document.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (result *domain.ExtractionResult, err error) {
	// The parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			result = &domain.ExtractionResult{Error: fmt.Sprintf("%s: malformed PDF: %v", filename, r)}
			err = nil
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &domain.ExtractionResult{Error: fmt.Sprintf("%s: failed to read PDF: %v", filename, err)}, nil
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return &domain.ExtractionResult{Error: filename + ": PDF has no pages"}, nil
	}

	pages := make([]domain.PageContent, 0, pageCount)
	usable := false
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			for _, name := range page.Fonts() {
				if _, ok := fonts[name]; !ok {
					f := page.Font(name)
					fonts[name] = &f
				}
			}
			raw, err := page.GetPlainText(fonts)
			if err != nil {
				logger.Debug("pdf %s: page %d: %v", filename, i, err)
			} else {
				text = cleanText(raw)
			}
		}
		if text != "" {
			usable = true
		}
		pages = append(pages, domain.PageContent{PageNumber: i, Text: text})
	}

	if !usable {
		return &domain.ExtractionResult{Error: filename + ": PDF contains no extractable text"}, nil
	}
	return &domain.ExtractionResult{Success: true, Pages: pages}, nil
}

// cleanText normalises line endings and trims trailing space on each line.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
