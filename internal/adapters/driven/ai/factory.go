// Package ai builds embedding and generation providers from settings and
// wraps them with retry, timeout, batching and statistics policies.
package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	ollamaembed "github.com/custodia-labs/pagewise/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/pagewise/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/pagewise/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/pagewise/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/pagewise/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// EmbeddingBuilder constructs a raw embedding provider from settings.
type EmbeddingBuilder func(settings domain.EmbeddingSettings) (driven.EmbeddingProvider, error)

// GenerationBuilder constructs a raw generation provider from settings.
type GenerationBuilder func(settings domain.LLMSettings) (driven.GenerationProvider, error)

// PolicyFunc returns the call policy for a provider.
type PolicyFunc func(provider domain.AIProvider) Policy

// Factory creates policy-wrapped providers and reuses them for identical
// settings. It is safe for concurrent use.
type Factory struct {
	mu                 sync.Mutex
	embeddingBuilders  map[domain.AIProvider]EmbeddingBuilder
	generationBuilders map[domain.AIProvider]GenerationBuilder
	embedders          map[string]*Embedder
	generators         map[string]*Generator
	policy             PolicyFunc
	metrics            *Metrics
}

// Option configures a Factory.
type Option func(*Factory)

// WithPolicy sets the per-provider call policy.
func WithPolicy(fn PolicyFunc) Option {
	return func(f *Factory) {
		if fn != nil {
			f.policy = fn
		}
	}
}

// WithRegisterer registers provider metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *Factory) {
		f.metrics = NewMetrics(reg)
	}
}

// NewFactory creates a factory with the built-in providers registered.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		embeddingBuilders:  make(map[domain.AIProvider]EmbeddingBuilder),
		generationBuilders: make(map[domain.AIProvider]GenerationBuilder),
		embedders:          make(map[string]*Embedder),
		generators:         make(map[string]*Generator),
		policy:             DefaultPolicy,
	}

	f.RegisterEmbedding(domain.AIProviderOllama, buildOllamaEmbedding)
	f.RegisterEmbedding(domain.AIProviderOpenAI, buildOpenAIEmbedding)
	f.RegisterGeneration(domain.AIProviderOllama, buildOllamaGeneration)
	f.RegisterGeneration(domain.AIProviderOpenAI, buildOpenAIGeneration)
	f.RegisterGeneration(domain.AIProviderAnthropic, buildAnthropicGeneration)

	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = NewMetrics(nil)
	}
	return f
}

// RegisterEmbedding sets the builder for an embedding provider.
func (f *Factory) RegisterEmbedding(provider domain.AIProvider, b EmbeddingBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddingBuilders[provider] = b
}

// RegisterGeneration sets the builder for a generation provider.
func (f *Factory) RegisterGeneration(provider domain.AIProvider, b GenerationBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generationBuilders[provider] = b
}

// EmbeddingKey is the cache key for embedding settings.
func EmbeddingKey(s domain.EmbeddingSettings) string {
	return fmt.Sprintf("%s|%s|%s|%d", s.Provider, s.Model, s.BaseURL, s.Dimensions)
}

// GenerationKey is the cache key for generation settings.
func GenerationKey(s domain.LLMSettings) string {
	return fmt.Sprintf("%s|%s|%s", s.Provider, s.Model, s.BaseURL)
}

// Embedder returns the wrapped embedding provider for settings, creating it
// on first use. Construction fails fast on configuration errors.
func (f *Factory) Embedder(settings domain.EmbeddingSettings) (*Embedder, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrProviderConfig, settings.Provider)
	}

	key := EmbeddingKey(settings)

	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := f.embedders[key]; ok {
		return e, nil
	}

	build, ok := f.embeddingBuilders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrProviderConfig, settings.Provider)
	}

	raw, err := build(settings)
	if err != nil {
		return nil, asConfigError(err)
	}

	// Providers that echo the configured size back (ollama) verify the real
	// vector length when pinged and on every embedding instead.
	if settings.Dimensions > 0 && raw.Dimensions() != settings.Dimensions {
		_ = raw.Close()
		return nil, fmt.Errorf("%w: %w: %s/%s produces %d dimensions, deployment uses %d",
			domain.ErrProviderConfig, domain.ErrDimensionMismatch,
			settings.Provider, settings.Model, raw.Dimensions(), settings.Dimensions)
	}

	policy := f.policy(settings.Provider)
	if policy.CostPer1KTokens == 0 {
		policy.CostPer1KTokens = embeddingCostPer1K[settings.Provider]
	}

	e := NewEmbedder(raw, policy, f.metrics)
	f.embedders[key] = e
	logger.Debug("ai factory: created embedder %s", key)
	return e, nil
}

// Generator returns the wrapped generation provider for settings, creating
// it on first use.
func (f *Factory) Generator(settings domain.LLMSettings) (*Generator, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: generation provider %q is not configured", domain.ErrProviderConfig, settings.Provider)
	}

	key := GenerationKey(settings)

	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.generators[key]; ok {
		return g, nil
	}

	build, ok := f.generationBuilders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported generation provider: %s", domain.ErrProviderConfig, settings.Provider)
	}

	raw, err := build(settings)
	if err != nil {
		return nil, asConfigError(err)
	}

	policy := f.policy(settings.Provider)
	if policy.CostPer1KTokens == 0 {
		policy.CostPer1KTokens = generationCostPer1K[settings.Provider]
	}

	g := NewGenerator(raw, policy, f.metrics)
	f.generators[key] = g
	logger.Debug("ai factory: created generator %s", key)
	return g, nil
}

// EmbedderWithFallback returns the primary embedder if it answers a ping,
// otherwise the secondary. The error names both providers when neither is
// usable. An unset secondary provider is skipped.
func (f *Factory) EmbedderWithFallback(ctx context.Context, primary, secondary domain.EmbeddingSettings) (*Embedder, error) {
	e, primaryErr := f.Embedder(primary)
	if primaryErr == nil {
		if primaryErr = e.Ping(ctx); primaryErr == nil {
			return e, nil
		}
	}
	if secondary.Provider == "" {
		return nil, fmt.Errorf("%w: embedding provider %s: %w", domain.ErrProviderUnavailable, primary.Provider, primaryErr)
	}
	logger.Warn("embedding provider %s unavailable, falling back to %s: %v", primary.Provider, secondary.Provider, primaryErr)

	e, secondaryErr := f.Embedder(secondary)
	if secondaryErr == nil {
		if secondaryErr = e.Ping(ctx); secondaryErr == nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: primary embedding provider %s: %v; secondary %s: %v",
		domain.ErrProviderUnavailable, primary.Provider, primaryErr, secondary.Provider, secondaryErr)
}

// GeneratorWithFallback returns the primary generator if it answers a ping,
// otherwise the secondary.
func (f *Factory) GeneratorWithFallback(ctx context.Context, primary, secondary domain.LLMSettings) (*Generator, error) {
	g, primaryErr := f.Generator(primary)
	if primaryErr == nil {
		if primaryErr = g.Ping(ctx); primaryErr == nil {
			return g, nil
		}
	}
	if secondary.Provider == "" {
		return nil, fmt.Errorf("%w: generation provider %s: %w", domain.ErrProviderUnavailable, primary.Provider, primaryErr)
	}
	logger.Warn("generation provider %s unavailable, falling back to %s: %v", primary.Provider, secondary.Provider, primaryErr)

	g, secondaryErr := f.Generator(secondary)
	if secondaryErr == nil {
		if secondaryErr = g.Ping(ctx); secondaryErr == nil {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: primary generation provider %s: %v; secondary %s: %v",
		domain.ErrProviderUnavailable, primary.Provider, primaryErr, secondary.Provider, secondaryErr)
}

// Stats returns statistics for every provider created so far, keyed by
// role and cache key.
func (f *Factory) Stats() map[string]domain.ProviderStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]domain.ProviderStats, len(f.embedders)+len(f.generators))
	for key, e := range f.embedders {
		out[roleEmbedding+" "+key] = e.Stats()
	}
	for key, g := range f.generators {
		out[roleGeneration+" "+key] = g.Stats()
	}
	return out
}

// Close releases every cached provider.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, e := range f.embedders {
		errs = append(errs, e.Close())
	}
	for _, g := range f.generators {
		errs = append(errs, g.Close())
	}
	f.embedders = make(map[string]*Embedder)
	f.generators = make(map[string]*Generator)
	return errors.Join(errs...)
}

// asConfigError marks construction failures as configuration errors.
func asConfigError(err error) error {
	if errors.Is(err, domain.ErrProviderConfig) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderConfig, err)
}

func buildOllamaEmbedding(s domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	dimensions := s.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[s.Model]
	}
	return ollamaembed.NewEmbeddingProvider(ollamaembed.Config{
		BaseURL:    s.BaseURL,
		Model:      s.Model,
		Dimensions: dimensions,
	}), nil
}

func buildOpenAIEmbedding(s domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	return openaiembed.NewEmbeddingProvider(openaiembed.Config{
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		Model:      s.Model,
		Dimensions: s.Dimensions,
	})
}

func buildOllamaGeneration(s domain.LLMSettings) (driven.GenerationProvider, error) {
	return ollamallm.NewGenerationProvider(ollamallm.Config{
		BaseURL: s.BaseURL,
		Model:   s.Model,
	}), nil
}

func buildOpenAIGeneration(s domain.LLMSettings) (driven.GenerationProvider, error) {
	return openaillm.NewGenerationProvider(openaillm.Config{
		APIKey:  s.APIKey,
		BaseURL: s.BaseURL,
		Model:   s.Model,
	})
}

func buildAnthropicGeneration(s domain.LLMSettings) (driven.GenerationProvider, error) {
	return anthropicllm.NewGenerationProvider(anthropicllm.Config{
		APIKey:  s.APIKey,
		BaseURL: s.BaseURL,
		Model:   s.Model,
	})
}
