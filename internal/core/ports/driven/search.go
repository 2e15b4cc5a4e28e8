package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// SearchOperation finds the stored chunks nearest to a query vector.
// Scores are cosine similarities in [0,1] and results arrive sorted by
// descending similarity; callers do not re-rank.
type SearchOperation interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)
}
