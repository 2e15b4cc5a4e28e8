package sqlite

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.SearchOperation = (*searchOperation)(nil)

// searchOperation scans every candidate chunk and ranks it by cosine
// similarity. Suitable for single-user corpora; use the postgres adapter
// for larger deployments.
type searchOperation struct {
	store *Store
}

// Search returns the chunks nearest to the query vector.
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

	sqlQuery := `
		SELECT c.id, c.document_id, d.name, c.page_number, c.section_title, c.text, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.user_id = ?`
	args := []any{query.UserID}

	if len(query.DocumentIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(query.DocumentIDs)), ",")
		sqlQuery += " AND c.document_id IN (" + placeholders + ")"
		for _, id := range query.DocumentIDs {
			args = append(args, id)
		}
	}

	rows, err := o.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r    domain.SearchResult
			blob []byte
		)
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName,
			&r.PageNumber, &r.SectionTitle, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		vec := decodeVector(blob)
		if len(vec) != len(query.Embedding) {
			continue
		}

		r.SimilarityScore = cosineSimilarity(query.Embedding, vec)
		if r.SimilarityScore < query.SimilarityThreshold {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > query.TopK {
		results = results[:query.TopK]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// clamped to [0,1].
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}
