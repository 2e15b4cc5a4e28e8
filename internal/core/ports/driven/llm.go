package driven

import (
	"context"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// GenerationProvider produces text completions.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini, gpt-4o)
//   - Anthropic (claude-3-5-sonnet)
//   - Ollama (llama3.2, mistral)
type GenerationProvider interface {
	// Generate runs a single completion. When req.Schema is set the provider
	// asks the backend for JSON matching the schema, natively if supported.
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)

	// ModelInfo describes the model in use.
	ModelInfo() domain.ModelInfo

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Generator is the resilient generation facade used by services.
// Calls are retried and timed out per the provider's policy.
type Generator interface {
	// Generate runs a single completion.
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)

	// ModelInfo describes the model in use.
	ModelInfo() domain.ModelInfo
}
