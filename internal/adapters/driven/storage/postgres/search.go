package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.SearchOperation = (*searchOperation)(nil)

type searchOperation struct {
	store *Store
}

// Search ranks chunks by pgvector cosine distance and returns those at or
// above the similarity threshold.
func (o *searchOperation) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", domain.ErrInvalidInput)
	}
	if dims := o.store.dimensions; dims > 0 && len(query.Embedding) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrDimensionMismatch, len(query.Embedding), dims)
	}
	if query.TopK <= 0 {
		return nil, nil
	}

	var documentFilter any
	if len(query.DocumentIDs) > 0 {
		documentFilter = pq.Array(query.DocumentIDs)
	}

	rows, err := o.store.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.name, c.page_number, c.section_title, c.text,
			1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.user_id = $2
		  AND ($3::text[] IS NULL OR c.document_id = ANY($3::text[]))
		  AND GREATEST(0, 1 - (c.embedding <=> $1)) >= $4
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $5
	`, pgvector.NewVector(query.Embedding), query.UserID, documentFilter, query.SimilarityThreshold, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r   domain.SearchResult
			sim float64
		)
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName,
			&r.PageNumber, &r.SectionTitle, &r.Text, &sim); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		// Opposite vectors yield negative similarity; NaN appears for zero vectors.
		if math.IsNaN(sim) {
			sim = 0
		}
		r.SimilarityScore = math.Max(0, math.Min(1, sim))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}
