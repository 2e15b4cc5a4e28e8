// Package markdown extracts pages from Markdown documents.
package markdown

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "markdown"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Extract simplifies Markdown formatting and paginates on form feeds.
// The first level-one heading becomes the first page's section title.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return &domain.ExtractionResult{Error: filename + ": not valid UTF-8 text"}, nil
	}

	content := string(data)
	result := plaintext.Paginate(Strip(content))
	if result.Success {
		result.Pages[0].SectionTitle = title(content)
	}
	return result, nil
}

// Pre-compiled regular expressions for Markdown simplification.
var (
	codeFence   = regexp.MustCompile("(?m)^```.*$")
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	images      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis    = regexp.MustCompile(`(\*\*|__|\*)([^*_\n]+)(\*\*|__|\*)`)
	blockquote  = regexp.MustCompile(`(?m)^>\s?`)
	rules       = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bullets     = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	tableBorder = regexp.MustCompile(`(?m)^\|?(\s*:?-+:?\s*\|)+\s*:?-*:?\s*$`)
	newlines    = regexp.MustCompile(`\n{3,}`)
)

// Strip removes Markdown syntax while keeping the text layout. Numbered
// lines and heading text are kept as written so section numbers and steps
// survive for chunking. Form feeds are kept as page breaks.
func Strip(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	pages := strings.Split(content, plaintext.PageBreak)
	for i, page := range pages {
		pages[i] = stripPage(page)
	}
	return strings.Join(pages, plaintext.PageBreak)
}

func stripPage(content string) string {

	// Keep code, drop the fences
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")

	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = rules.ReplaceAllString(content, "")
	content = tableBorder.ReplaceAllString(content, "")
	content = bullets.ReplaceAllString(content, "$1- ")

	content = newlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// title returns the text of the first level-one heading.
func title(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}
