package domain

// SearchQuery is the input to the vector search operation.
type SearchQuery struct {
	// Embedding is the query vector.
	Embedding []float32

	// UserID restricts results to one user's documents.
	UserID string

	// SimilarityThreshold is the minimum cosine similarity to return.
	SimilarityThreshold float64

	// TopK is the maximum number of results.
	TopK int

	// DocumentIDs optionally restricts results to specific documents.
	DocumentIDs []string
}

// SearchResult is one chunk returned by vector search.
// Results are ordered by descending SimilarityScore.
type SearchResult struct {
	ChunkID         string
	DocumentID      string
	DocumentName    string
	PageNumber      int
	SectionTitle    string
	Text            string
	SimilarityScore float64
}

// StoreRequest is a batch of embedded chunks to persist for one document.
type StoreRequest struct {
	DocumentID     string
	UserID         string
	EmbeddingModel string
	Chunks         []Chunk
}

// StoreResult reports how a StoreRequest was applied.
type StoreResult struct {
	Success     bool
	StoredCount int
	FailedCount int
	Errors      []string
}
