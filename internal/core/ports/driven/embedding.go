// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// EmbeddingProvider generates vector embeddings from text.
//
// Implementations talk to one backend and do not retry; retry, timeouts,
// batching limits and statistics are layered on top by the AI factory.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingProvider interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)

	// EmbedBatch generates embeddings for multiple texts in one backend call
	// where the backend supports it. Results are index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelInfo describes the model in use.
	ModelInfo() domain.ModelInfo

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Embedder is the resilient embedding facade used by services. Batches are
// split, retried and reported per item instead of failing as a whole.
type Embedder interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)

	// EmbedBatch embeds texts, recording per-item failures in the result.
	// An error is returned only when the whole call was abandoned.
	EmbedBatch(ctx context.Context, texts []string) (*domain.BatchEmbeddingResult, error)

	// ModelInfo describes the model in use.
	ModelInfo() domain.ModelInfo
}
