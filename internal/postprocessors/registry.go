// Package postprocessors builds the chunking engines that turn extracted
// pages into chunks.
package postprocessors

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/postprocessors/chunker"
	"github.com/custodia-labs/pagewise/internal/tokens"
)

// ErrUnknownStrategy is returned by Build for an unregistered strategy.
var ErrUnknownStrategy = errors.New("unknown chunking strategy")

// Builder creates a chunker from chunking settings.
type Builder func(settings domain.ChunkingSettings) (driven.Chunker, error)

// Registry maps chunking strategies to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[domain.ChunkingStrategy]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[domain.ChunkingStrategy]Builder)}
}

// NewDefaultRegistry returns a registry holding the standard and
// hierarchical chunkers, both counting tokens with sizer.
func NewDefaultRegistry(sizer tokens.Sizer) *Registry {
	r := NewRegistry()
	r.Register(domain.ChunkingStandard, func(s domain.ChunkingSettings) (driven.Chunker, error) {
		return chunker.New(sizer, Options(s)...), nil
	})
	r.Register(domain.ChunkingHierarchical, func(s domain.ChunkingSettings) (driven.Chunker, error) {
		return chunker.NewHierarchical(sizer, Options(s)...), nil
	})
	return r
}

// Register adds or replaces the builder for strategy.
func (r *Registry) Register(strategy domain.ChunkingStrategy, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[strategy] = b
}

// Build creates the chunker named by settings.Strategy.
func (r *Registry) Build(settings domain.ChunkingSettings) (driven.Chunker, error) {
	r.mu.RLock()
	b, ok := r.builders[settings.Strategy]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, settings.Strategy)
	}
	return b(settings)
}

// Strategies returns the registered strategies in sorted order.
func (r *Registry) Strategies() []domain.ChunkingStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ChunkingStrategy, 0, len(r.builders))
	for s := range r.builders {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Options translates settings into chunker options. A non-positive chunk
// size keeps the chunker default.
func Options(s domain.ChunkingSettings) []chunker.Option {
	opts := []chunker.Option{
		chunker.WithOverlap(s.ChunkOverlapTokens),
		chunker.WithPreserveSentences(s.PreserveSentences),
		chunker.WithSectionDetection(s.DetectSections),
		chunker.WithEnhancedMetadata(s.EnhancedMetadata),
	}
	if s.ChunkSizeTokens > 0 {
		opts = append(opts, chunker.WithChunkSize(s.ChunkSizeTokens))
	}
	return opts
}
