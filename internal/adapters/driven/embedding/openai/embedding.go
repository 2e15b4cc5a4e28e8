// Package openai provides an embedding provider adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure EmbeddingProvider implements the interface.
var _ driven.EmbeddingProvider = (*EmbeddingProvider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = string(openai.SmallEmbedding3)
	DefaultTimeout = 60 * time.Second
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the HTTP client timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	// Only applicable to text-embedding-3-* models.
	Dimensions int
}

// EmbeddingProvider generates embeddings using the OpenAI API.
type EmbeddingProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	shortened  bool
}

// NewEmbeddingProvider creates a new OpenAI embedding provider.
func NewEmbeddingProvider(cfg Config) (*EmbeddingProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrProviderConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Only text-embedding-3-* models accept a dimensions parameter.
	native, known := modelDimensions[cfg.Model]
	if !known {
		native = 1536
	}
	shortened := strings.HasPrefix(cfg.Model, "text-embedding-3-") && cfg.Dimensions > 0 && cfg.Dimensions != native
	dimensions := native
	if shortened {
		dimensions = cfg.Dimensions
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &EmbeddingProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: dimensions,
		shortened:  shortened,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	results, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if len(results) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("openai: no embedding returned")
	}
	return results[0], nil
}

// EmbedBatch embeds all texts in a single request.
func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	if p.shortened {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: %d embeddings returned for %d inputs", len(resp.Data), len(texts))
	}

	// Spread prompt tokens evenly for per-item cost accounting.
	perItem := resp.Usage.PromptTokens / len(texts)

	results := make([]domain.EmbeddingResult, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", data.Index)
		}
		results[data.Index] = domain.EmbeddingResult{
			Vector:     data.Embedding,
			Dimensions: len(data.Embedding),
			Model:      p.model,
			TokenCount: perItem,
		}
	}
	return results, nil
}

// Dimensions returns the embedding vector size.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// ModelInfo describes the embedding model.
func (p *EmbeddingProvider) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{
		Name:       p.model,
		Provider:   domain.AIProviderOpenAI,
		Dimensions: p.dimensions,
	}
}

// Ping validates the API key by listing models, without running inference.
func (p *EmbeddingProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", classify(err))
	}
	return nil
}

// Close releases resources.
func (p *EmbeddingProvider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// classify marks rejected requests as configuration errors so they are not
// retried. Timeouts and rate limits stay retryable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && permanent(apiErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %w", domain.ErrProviderConfig, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && permanent(reqErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %w", domain.ErrProviderConfig, err)
	}
	return err
}

func permanent(status int) bool {
	return status >= 400 && status < 500 &&
		status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
