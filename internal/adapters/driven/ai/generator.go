package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface compliance.
var (
	_ driven.GenerationProvider = (*Generator)(nil)
	_ driven.Generator          = (*Generator)(nil)
)

// Generator wraps a GenerationProvider with retries, timeouts and statistics.
type Generator struct {
	provider driven.GenerationProvider
	info     domain.ModelInfo
	policy   Policy
	caller   *caller
	stats    *statsRecorder
}

// NewGenerator wraps provider with policy. metrics may be nil.
func NewGenerator(provider driven.GenerationProvider, policy Policy, metrics *Metrics) *Generator {
	info := provider.ModelInfo()
	stats := newStatsRecorder(info, roleGeneration, metrics)
	policy = policy.normalised()
	return &Generator{
		provider: provider,
		info:     info,
		policy:   policy,
		caller:   newCaller(fmt.Sprintf("%s/%s", info.Provider, info.Name), policy, stats),
		stats:    stats,
	}
}

// Generate runs a completion with the wrapper's retry policy.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	res, err := call(ctx, g.caller, func(ctx context.Context) (*domain.GenerationResult, error) {
		return g.provider.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: empty generation result", g.info.Name)
	}
	g.stats.addTokens(res.TotalTokens(), g.policy.CostPer1KTokens)
	return res, nil
}

// ModelInfo describes the wrapped model.
func (g *Generator) ModelInfo() domain.ModelInfo {
	return g.info
}

// Ping checks connectivity once, without retries.
func (g *Generator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return g.provider.Ping(ctx)
}

// Stats returns the accumulated call statistics.
func (g *Generator) Stats() domain.ProviderStats {
	return g.stats.snapshot()
}

// Close releases the wrapped provider.
func (g *Generator) Close() error {
	return g.provider.Close()
}

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second
