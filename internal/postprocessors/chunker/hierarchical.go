package chunker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
	"github.com/custodia-labs/pagewise/internal/tokens"
)

// Verify interface compliance.
var _ driven.Chunker = (*Hierarchical)(nil)

// Hierarchical splits pages along section boundaries before splitting by size.
type Hierarchical struct {
	base *Processor
}

// NewHierarchical creates a section-aware chunker. Options are shared with New.
func NewHierarchical(sizer tokens.Sizer, opts ...Option) *Hierarchical {
	return &Hierarchical{base: New(sizer, opts...)}
}

// Name returns the processor name.
func (h *Hierarchical) Name() string {
	return string(domain.ChunkingHierarchical)
}

// Chunk runs ChunkHierarchical and flattens the hierarchy into chunk metadata.
func (h *Hierarchical) Chunk(ctx context.Context, pages []domain.PageContent, documentID string) (*domain.ChunkResult, error) {
	hchunks, err := h.ChunkHierarchical(ctx, pages, documentID)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(hchunks))
	for i, hc := range hchunks {
		c := hc.Chunk
		c.Metadata.ContainsSteps = hc.ContainsSteps
		c.Metadata.CrossReferences = hc.CrossReferences
		c.Metadata.IsCompleteProcedure = hc.IsCompleteProcedure
		for _, s := range hc.SectionHierarchy {
			c.Metadata.SectionPath = append(c.Metadata.SectionPath, s.Number)
		}
		chunks[i] = c
	}
	return domain.NewChunkResult(chunks), nil
}

// span is a run of lines [startLine, endLine) owned by one section.
// section is nil for text before the first heading of a document.
type span struct {
	section   *domain.SectionInfo
	startLine int
	endLine   int
	anchored  bool
}

// ChunkHierarchical splits pages into section-annotated chunks.
func (h *Hierarchical) ChunkHierarchical(ctx context.Context, pages []domain.PageContent, documentID string) ([]domain.HierarchicalChunk, error) {
	// 1. BUILD SECTION MAP
	index := BuildSectionIndex(pages)
	logger.Debug("hierarchical chunker: %d sections detected in %s", index.Len(), documentID)

	var out []domain.HierarchicalChunk
	var carried *domain.SectionInfo
	carryTitle := ""

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 2. LOCATE SPANS
		lines := splitLines(page.Text)
		spans := h.spans(lines, index, carried)

		// 3. FALL BACK TO PLAIN CHUNKING
		if len(spans) == 0 {
			for _, c := range h.base.chunkPage(page, documentID, &carryTitle) {
				out = append(out, h.wrap(c, index.mentioned(c.Text)))
			}
			continue
		}

		// 4. CHUNK EACH SPAN
		for _, sp := range spans {
			out = append(out, h.chunkSpan(page, lines, sp, index, documentID)...)
			if sp.section != nil {
				carried = sp.section
				carryTitle = sp.section.Label()
			}
		}
	}

	for i := range out {
		out[i].ChunkIndex = i
	}
	return out, nil
}

// spans cuts a page's lines at every line naming a known section. Step
// headings stay inside their enclosing section. Lines before the first
// heading belong to the section carried over from earlier pages.
func (h *Hierarchical) spans(lines []line, index *SectionIndex, carried *domain.SectionInfo) []span {
	var bounds []int
	var owners []domain.SectionInfo
	for i, l := range lines {
		info, ok := index.match(l.text)
		if !ok || info.Type == domain.SectionStep {
			continue
		}
		bounds = append(bounds, i)
		owners = append(owners, info)
	}
	if len(bounds) == 0 {
		return nil
	}

	var spans []span
	if bounds[0] > 0 && hasText(lines[:bounds[0]]) {
		spans = append(spans, span{section: carried, startLine: 0, endLine: bounds[0]})
	}
	for i, b := range bounds {
		end := len(lines)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		owner := owners[i]
		spans = append(spans, span{section: &owner, startLine: b, endLine: end, anchored: true})
	}
	return spans
}

func hasText(lines []line) bool {
	for _, l := range lines {
		if len(wordPattern.FindStringIndex(l.text)) > 0 {
			return true
		}
	}
	return false
}

// chunkSpan emits one chunk for a span that fits the budget, or splits it
// with the heading line repeated at the top of every piece.
func (h *Hierarchical) chunkSpan(page domain.PageContent, lines []line, sp span, index *SectionIndex, documentID string) []domain.HierarchicalChunk {
	p := h.base
	start, end, ok := trimRange(page.Text, lines[sp.startLine].start, lines[sp.endLine-1].end)
	if !ok {
		return nil
	}
	text := page.Text[start:end]

	var hierarchy []domain.SectionInfo
	title := ""
	if sp.section != nil {
		hierarchy = index.hierarchy(*sp.section)
		title = sp.section.Label()
	}

	if p.sizer.Count(text) <= p.chunkSize {
		return []domain.HierarchicalChunk{h.build(page, documentID, text, start, end, title, hierarchy)}
	}

	anchor := ""
	bodyStart := start
	budget := p.chunkSize
	if sp.anchored && sp.endLine-sp.startLine > 1 && lines[sp.startLine+1].start < end {
		header := strings.TrimSpace(lines[sp.startLine].text)
		if cost := p.sizer.Count(header + "\n"); cost < p.chunkSize/4 {
			anchor = header
			bodyStart = lines[sp.startLine+1].start
			budget = p.chunkSize - cost
		}
	}

	body := page.Text[bodyStart:end]
	segs, words, truncated := p.splitter().split(body, budget)
	if truncated {
		logger.Warn("hierarchical chunker: section %q on page %d exceeded %d chunks; remaining text skipped",
			title, page.PageNumber, MaxChunksPerPage)
	}

	out := make([]domain.HierarchicalChunk, 0, len(segs))
	for i, seg := range segs {
		segStart, segEnd := bodyStart+words[seg.first].start, bodyStart+words[seg.last-1].end
		piece := page.Text[segStart:segEnd]
		if anchor != "" {
			piece = anchor + "\n" + piece
			if i == 0 {
				segStart = start
			}
		}
		out = append(out, h.build(page, documentID, piece, segStart, segEnd, title, hierarchy))
	}
	return out
}

// trimRange narrows [start, end) of text to exclude surrounding whitespace.
func trimRange(text string, start, end int) (int, int, bool) {
	locs := wordPattern.FindAllStringIndex(text[start:end], -1)
	if len(locs) == 0 {
		return start, end, false
	}
	return start + locs[0][0], start + locs[len(locs)-1][1], true
}

func (h *Hierarchical) build(page domain.PageContent, documentID, text string, start, end int, title string, hierarchy []domain.SectionInfo) domain.HierarchicalChunk {
	meta := annotate(text)
	if !h.base.enhancedMetadata {
		meta = domain.ChunkMetadata{}
	}
	if title == "" {
		title = page.SectionTitle
	}
	return h.wrap(domain.Chunk{
		ID:                uuid.New().String(),
		DocumentID:        documentID,
		PageNumber:        page.PageNumber,
		Text:              text,
		TokenCount:        h.base.sizer.Count(text),
		PagePositionStart: start,
		PagePositionEnd:   end,
		SectionTitle:      title,
		Metadata:          meta,
	}, hierarchy)
}

// wrap attaches the hierarchy and the procedure flags to a chunk.
func (h *Hierarchical) wrap(c domain.Chunk, hierarchy []domain.SectionInfo) domain.HierarchicalChunk {
	meta := annotate(c.Text)
	return domain.HierarchicalChunk{
		Chunk:               c,
		SectionHierarchy:    hierarchy,
		IsCompleteProcedure: isCompleteProcedure(c.Text, meta),
		ContainsSteps:       meta.ContainsSteps,
		CrossReferences:     meta.CrossReferences,
	}
}
