// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/jsonapi"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*EmbeddingProvider)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
)

// Config configures the provider. Zero fields take the defaults above.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingProvider calls Ollama's /api/embed, which accepts many inputs
// per request.
type EmbeddingProvider struct {
	api        *jsonapi.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func NewEmbeddingProvider(cfg Config) *EmbeddingProvider {
	cfg.BaseURL = cmp.Or(cfg.BaseURL, DefaultBaseURL)
	cfg.Model = cmp.Or(cfg.Model, DefaultModel)
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingProvider{
		api:        jsonapi.New("ollama", cfg.BaseURL, cfg.Timeout, nil),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed embeds one text.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	results, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return results[0], nil
}

// EmbedBatch embeds texts in one request. The server either embeds every
// input or fails the whole request. Vectors whose length differs from the
// configured dimensions are a configuration error.
func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := p.api.Post(ctx, "/api/embed", embedRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	results := make([]domain.EmbeddingResult, len(texts))
	for i, vec := range resp.Embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("ollama: empty embedding for input %d", i)
		}
		if len(vec) != p.dimensions {
			return nil, fmt.Errorf("%w: %w: ollama model %s returned %d dimensions, configured %d",
				domain.ErrProviderConfig, domain.ErrDimensionMismatch, p.model, len(vec), p.dimensions)
		}
		results[i] = domain.EmbeddingResult{Vector: vec, Dimensions: len(vec), Model: p.model}
	}
	return results, nil
}

func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

func (p *EmbeddingProvider) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: p.model, Provider: domain.AIProviderOllama, Dimensions: p.dimensions}
}

// Ping embeds a single word. Ollama does not report a model's vector size
// up front, so this is also where a dimension mismatch surfaces.
func (p *EmbeddingProvider) Ping(ctx context.Context) error {
	_, err := p.Embed(ctx, "ping")
	return err
}

func (p *EmbeddingProvider) Close() error {
	return nil
}
