package driving

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// AnswerService answers questions from a user's ingested documents.
type AnswerService interface {
	// Answer always returns a well-formed answer. Failures produce a
	// degraded answer with zero confidence and the error in its metadata.
	Answer(ctx context.Context, req domain.AnswerRequest) *domain.RAGAnswer
}
