package domain

// PageContent is one page of extracted source text.
// It is immutable once produced by an extractor.
type PageContent struct {
	// PageNumber is the 1-based page number in the source document.
	PageNumber int

	// Text is the extracted page text.
	Text string

	// SectionTitle is an optional title the extractor already knows for this page.
	SectionTitle string
}

// ExtractionResult is the outcome of extracting pages from raw document bytes.
type ExtractionResult struct {
	// Success is false when extraction failed or produced nothing usable.
	Success bool

	// Pages holds the extracted pages in document order.
	Pages []PageContent

	// Error describes the failure when Success is false.
	Error string
}

// Chunk is a token-bounded slice of one page's text.
// Chunks never span two pages; ChunkIndex is contiguous across a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent document.
	DocumentID string

	// PageNumber is the single page this chunk's text came from.
	PageNumber int

	// ChunkIndex is the 0-based position of the chunk within the document.
	ChunkIndex int

	// Text is the chunk content.
	Text string

	// TokenCount is the exact token count of Text.
	TokenCount int

	// PagePositionStart is the byte offset in the page text where the chunk starts.
	PagePositionStart int

	// PagePositionEnd is the byte offset in the page text where the chunk ends.
	PagePositionEnd int

	// SectionTitle is the section the chunk belongs to, if known.
	SectionTitle string

	// Embedding is the vector representation. Empty until embedded.
	Embedding []float32

	// EmbeddingModel names the model that produced Embedding.
	EmbeddingModel string

	// Metadata holds the semantic flags computed during chunking.
	Metadata ChunkMetadata
}

// ChunkMetadata holds enhanced per-chunk annotations.
type ChunkMetadata struct {
	HasProcedureCue     bool     `json:"has_procedure_cue,omitempty"`
	ContainsSteps       bool     `json:"contains_steps,omitempty"`
	HasDefinition       bool     `json:"has_definition,omitempty"`
	IsCompleteProcedure bool     `json:"is_complete_procedure,omitempty"`
	CrossReferences     []string `json:"cross_references,omitempty"`
	SectionNumbers      []string `json:"section_numbers,omitempty"`

	// SectionPath lists section numbers from the root to the owning section.
	SectionPath []string `json:"section_path,omitempty"`
}

// ChunkResult is the output of a chunking run over a document.
type ChunkResult struct {
	Chunks            []Chunk
	TotalTokens       int
	AvgTokensPerChunk float64
}

// NewChunkResult builds a ChunkResult and computes its token totals.
func NewChunkResult(chunks []Chunk) *ChunkResult {
	result := &ChunkResult{Chunks: chunks}
	for _, c := range chunks {
		result.TotalTokens += c.TokenCount
	}
	if len(chunks) > 0 {
		result.AvgTokensPerChunk = float64(result.TotalTokens) / float64(len(chunks))
	}
	return result
}

// SectionType identifies the pattern family a section heading was matched by.
type SectionType string

// Section pattern families, in detection order.
const (
	SectionHierarchical SectionType = "hierarchical"
	SectionChapter      SectionType = "chapter"
	SectionAppendix     SectionType = "appendix"
	SectionLetter       SectionType = "letter"
	SectionRoman        SectionType = "roman"
	SectionStep         SectionType = "step"
)

// SectionInfo describes a section heading found in a document.
// It is derived per ingestion run and never persisted on its own.
type SectionInfo struct {
	// Number is the section identifier as written, e.g. "1.2.1", "IV" or "B".
	Number string

	// Title is the heading text after the number.
	Title string

	// Level is the nesting depth, 1 for top-level sections.
	Level int

	// Type is the pattern family that matched.
	Type SectionType

	// ParentSection is the number one level up, empty for top-level sections.
	ParentSection string
}

// Label returns the number and title joined for display.
func (s SectionInfo) Label() string {
	if s.Title == "" {
		return s.Number
	}
	if s.Number == "" {
		return s.Title
	}
	return s.Number + " " + s.Title
}

// HierarchicalChunk is a Chunk annotated with its place in the section hierarchy.
type HierarchicalChunk struct {
	Chunk

	// SectionHierarchy lists sections from the root down to the owning section.
	SectionHierarchy []SectionInfo

	// IsCompleteProcedure is true only when the chunk carries a procedure cue,
	// step markers, and either a completion cue or more than five lines.
	IsCompleteProcedure bool

	ContainsSteps   bool
	CrossReferences []string
}
