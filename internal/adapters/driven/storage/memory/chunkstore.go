package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure ChunkStore implements both ports.
var (
	_ driven.ChunkStore      = (*ChunkStore)(nil)
	_ driven.SearchOperation = (*ChunkStore)(nil)
)

type storedChunk struct {
	chunk  domain.Chunk
	userID string
}

// ChunkStore is an in-memory chunk store with brute-force cosine search.
// Document names are resolved through the optional status store.
type ChunkStore struct {
	mu         sync.RWMutex
	chunks     map[string][]storedChunk
	dimensions int
	documents  driven.DocumentStatusStore
}

// NewChunkStore creates a new in-memory chunk store. A zero dimension
// accepts vectors of any length.
func NewChunkStore(dimensions int, documents driven.DocumentStatusStore) *ChunkStore {
	return &ChunkStore{
		chunks:     make(map[string][]storedChunk),
		dimensions: dimensions,
		documents:  documents,
	}
}

// StoreChunks replaces a document's chunks after validating every embedding.
func (s *ChunkStore) StoreChunks(_ context.Context, req domain.StoreRequest) (*domain.StoreResult, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	var errs []string
	for _, chunk := range req.Chunks {
		switch {
		case len(chunk.Embedding) == 0:
			errs = append(errs, fmt.Sprintf("chunk %d: missing embedding", chunk.ChunkIndex))
		case s.dimensions > 0 && len(chunk.Embedding) != s.dimensions:
			errs = append(errs, fmt.Sprintf("chunk %d: %v: got %d, want %d",
				chunk.ChunkIndex, domain.ErrDimensionMismatch, len(chunk.Embedding), s.dimensions))
		}
	}
	if len(errs) > 0 {
		return &domain.StoreResult{FailedCount: len(req.Chunks), Errors: errs}, nil
	}

	stored := make([]storedChunk, len(req.Chunks))
	for i, chunk := range req.Chunks {
		if chunk.EmbeddingModel == "" {
			chunk.EmbeddingModel = req.EmbeddingModel
		}
		chunk.DocumentID = req.DocumentID
		stored[i] = storedChunk{chunk: chunk, userID: req.UserID}
	}

	s.mu.Lock()
	s.chunks[req.DocumentID] = append(s.chunks[req.DocumentID], stored...)
	s.mu.Unlock()

	return &domain.StoreResult{Success: true, StoredCount: len(stored)}, nil
}

// DeleteDocumentChunks removes every chunk of a document.
func (s *ChunkStore) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *ChunkStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// Search ranks every chunk the user owns by cosine similarity.
func (s *ChunkStore) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", domain.ErrInvalidInput)
	}
	if s.dimensions > 0 && len(query.Embedding) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrDimensionMismatch, len(query.Embedding), s.dimensions)
	}
	if query.TopK <= 0 {
		return nil, nil
	}

	allowed := make(map[string]bool, len(query.DocumentIDs))
	for _, id := range query.DocumentIDs {
		allowed[id] = true
	}

	s.mu.RLock()
	var results []domain.SearchResult
	for docID, chunks := range s.chunks {
		if len(allowed) > 0 && !allowed[docID] {
			continue
		}
		for _, sc := range chunks {
			if sc.userID != query.UserID || len(sc.chunk.Embedding) != len(query.Embedding) {
				continue
			}
			score := cosine(query.Embedding, sc.chunk.Embedding)
			if score < query.SimilarityThreshold {
				continue
			}
			results = append(results, domain.SearchResult{
				ChunkID:         sc.chunk.ID,
				DocumentID:      docID,
				PageNumber:      sc.chunk.PageNumber,
				SectionTitle:    sc.chunk.SectionTitle,
				Text:            sc.chunk.Text,
				SimilarityScore: score,
			})
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore == results[j].SimilarityScore {
			return results[i].ChunkID < results[j].ChunkID
		}
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > query.TopK {
		results = results[:query.TopK]
	}

	if s.documents != nil {
		for i := range results {
			if doc, err := s.documents.Get(ctx, results[i].DocumentID); err == nil {
				results[i].DocumentName = doc.Name
			}
		}
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}
