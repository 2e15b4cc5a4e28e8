// Package chunker splits extracted pages into token-bounded chunks.
//
// Two engines are provided. Processor splits each page independently by
// token budget with overlap. Hierarchical first locates section boundaries
// and splits within them, keeping each section's heading with every piece.
// Neither engine ever produces a chunk spanning two pages.
package chunker

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
	"github.com/custodia-labs/pagewise/internal/tokens"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 700

// DefaultChunkOverlap is the default number of overlapping tokens.
const DefaultChunkOverlap = 120

// MaxChunksPerPage bounds the chunks produced for a single page.
const MaxChunksPerPage = 1000

// Verify interface compliance.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits page text into overlapping token-bounded chunks.
type Processor struct {
	sizer             tokens.Sizer
	chunkSize         int
	overlap           int
	preserveSentences bool
	detectSections    bool
	enhancedMetadata  bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithPreserveSentences controls whether cuts move back to sentence ends.
func WithPreserveSentences(enabled bool) Option {
	return func(p *Processor) {
		p.preserveSentences = enabled
	}
}

// WithSectionDetection controls whether section headings set chunk titles.
func WithSectionDetection(enabled bool) Option {
	return func(p *Processor) {
		p.detectSections = enabled
	}
}

// WithEnhancedMetadata controls whether chunks carry semantic flags.
func WithEnhancedMetadata(enabled bool) Option {
	return func(p *Processor) {
		p.enhancedMetadata = enabled
	}
}

// New creates a new chunker processor with the given options.
func New(sizer tokens.Sizer, opts ...Option) *Processor {
	p := &Processor{
		sizer:             sizer,
		chunkSize:         DefaultChunkSize,
		overlap:           DefaultChunkOverlap,
		preserveSentences: true,
		detectSections:    true,
		enhancedMetadata:  true,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return string(domain.ChunkingStandard)
}

// Chunk splits every page and numbers the chunks across the document.
func (p *Processor) Chunk(ctx context.Context, pages []domain.PageContent, documentID string) (*domain.ChunkResult, error) {
	var chunks []domain.Chunk
	carry := ""

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, p.chunkPage(page, documentID, &carry)...)
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}

	return domain.NewChunkResult(chunks), nil
}

func (p *Processor) splitter() *splitter {
	return &splitter{
		sizer:             p.sizer,
		overlap:           p.overlap,
		preserveSentences: p.preserveSentences,
		maxSegments:       MaxChunksPerPage,
	}
}

// chunkPage splits one page. carry holds the section title in effect at the
// end of the previous page and is updated for the next one.
func (p *Processor) chunkPage(page domain.PageContent, documentID string, carry *string) []domain.Chunk {
	segs, words, truncated := p.splitter().split(page.Text, p.chunkSize)
	if truncated {
		logger.Warn("chunker: page %d of document %s exceeded %d chunks; remaining text skipped",
			page.PageNumber, documentID, MaxChunksPerPage)
	}
	if len(segs) == 0 {
		return nil
	}

	var headers []headerAt
	if p.detectSections {
		headers = findHeaders(page.Text)
	}

	chunks := make([]domain.Chunk, 0, len(segs))
	for _, seg := range segs {
		start, end := words[seg.first].start, words[seg.last-1].end
		text := page.Text[start:end]

		chunk := domain.Chunk{
			ID:                uuid.New().String(),
			DocumentID:        documentID,
			PageNumber:        page.PageNumber,
			Text:              text,
			TokenCount:        p.sizer.Count(text),
			PagePositionStart: start,
			PagePositionEnd:   end,
			SectionTitle:      sectionFor(page, headers, start, end, *carry),
		}
		if p.enhancedMetadata {
			chunk.Metadata = annotate(text)
		}
		chunks = append(chunks, chunk)
	}

	if page.SectionTitle != "" {
		*carry = page.SectionTitle
	}
	if len(headers) > 0 {
		*carry = headers[len(headers)-1].info.Label()
	}
	return chunks
}

// sectionFor picks the title for a chunk spanning [start, end) of the page:
// the page's own title, else the last heading at or before start, else the
// first heading inside the chunk, else the title carried from earlier pages.
func sectionFor(page domain.PageContent, headers []headerAt, start, end int, carry string) string {
	if page.SectionTitle != "" {
		return page.SectionTitle
	}
	title := ""
	for _, h := range headers {
		if h.offset > start {
			break
		}
		title = h.info.Label()
	}
	if title != "" {
		return title
	}
	for _, h := range headers {
		if h.offset < end {
			return h.info.Label()
		}
	}
	return carry
}
