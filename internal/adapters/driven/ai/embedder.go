package ai

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// previewLength is the number of characters kept in BatchItemError.TextPreview.
const previewLength = 80

// Verify interface compliance.
var _ driven.Embedder = (*Embedder)(nil)

// Embedder wraps an EmbeddingProvider with retries, timeouts, batching
// limits and statistics.
type Embedder struct {
	provider driven.EmbeddingProvider
	info     domain.ModelInfo
	policy   Policy
	caller   *caller
	stats    *statsRecorder
}

// NewEmbedder wraps provider with policy. metrics may be nil.
func NewEmbedder(provider driven.EmbeddingProvider, policy Policy, metrics *Metrics) *Embedder {
	info := provider.ModelInfo()
	stats := newStatsRecorder(info, roleEmbedding, metrics)
	policy = policy.normalised()
	return &Embedder{
		provider: provider,
		info:     info,
		policy:   policy,
		caller:   newCaller(fmt.Sprintf("%s/%s", info.Provider, info.Name), policy, stats),
		stats:    stats,
	}
}

// Embed embeds a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := call(ctx, e.caller, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return e.provider.Embed(ctx, text)
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	e.stats.addTokens(res.TokenCount, e.policy.CostPer1KTokens)
	return res, nil
}

// EmbedBatch embeds texts in sequential sub-batches of at most MaxBatchSize.
// A sub-batch whose batch call fails is retried item by item; items that
// still fail are reported in the result and do not stop later sub-batches.
// While the circuit breaker is open no per-item calls are made and every
// item of the sub-batch reports the batch error.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (*domain.BatchEmbeddingResult, error) {
	out := &domain.BatchEmbeddingResult{Results: make([]domain.EmbeddingResult, len(texts))}
	size := e.policy.MaxBatchSize

	for start := 0; start < len(texts); start += size {
		if start > 0 {
			if err := sleep(ctx, e.policy.BatchDelay); err != nil {
				return nil, err
			}
		}
		end := min(start+size, len(texts))
		batch := texts[start:end]

		// 1. NATIVE BATCH CALL
		results, err := call(ctx, e.caller, func(ctx context.Context) ([]domain.EmbeddingResult, error) {
			return e.provider.EmbedBatch(ctx, batch)
		})
		if err == nil && len(results) == len(batch) {
			copy(out.Results[start:end], results)
			for _, r := range results {
				e.stats.addTokens(r.TokenCount, e.policy.CostPer1KTokens)
			}
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = fmt.Errorf("provider returned %d embeddings for %d texts", len(results), len(batch))
		}
		if e.caller.open() {
			logger.Debug("embedder %s: batch %d-%d failed with circuit open: %v",
				e.info.Name, start, end, err)
			out.Errors = append(out.Errors, failAll(batch, start, err)...)
			continue
		}
		logger.Debug("embedder %s: batch %d-%d failed, embedding items individually: %v",
			e.info.Name, start, end, err)

		// 2. PER-ITEM FALLBACK
		itemErrs := e.embedEach(ctx, batch, start, out.Results)
		out.Errors = append(out.Errors, itemErrs...)
	}

	sortItemErrors(out.Errors)
	return out, nil
}

// embedEach embeds texts concurrently, writing into results at offset.
func (e *Embedder) embedEach(ctx context.Context, texts []string, offset int, results []domain.EmbeddingResult) []domain.BatchItemError {
	var mu sync.Mutex
	var errs []domain.BatchItemError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.policy.MaxBatchSize)

	for i, text := range texts {
		g.Go(func() error {
			res, err := e.Embed(gctx, text)
			if err != nil {
				mu.Lock()
				errs = append(errs, domain.BatchItemError{
					Index:       offset + i,
					Error:       err.Error(),
					TextPreview: preview(text),
				})
				mu.Unlock()
				return nil
			}
			results[offset+i] = res
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// failAll reports err for every text of a sub-batch starting at offset.
func failAll(texts []string, offset int, err error) []domain.BatchItemError {
	errs := make([]domain.BatchItemError, len(texts))
	for i, text := range texts {
		errs[i] = domain.BatchItemError{
			Index:       offset + i,
			Error:       err.Error(),
			TextPreview: preview(text),
		}
	}
	return errs
}

func sortItemErrors(errs []domain.BatchItemError) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + "..."
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.provider.Dimensions()
}

// ModelInfo describes the wrapped model.
func (e *Embedder) ModelInfo() domain.ModelInfo {
	return e.info
}

// Ping checks the provider once, without retries. Some providers embed a
// probe text to answer, so the per-attempt timeout applies.
func (e *Embedder) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()
	return e.provider.Ping(ctx)
}

// Stats returns the accumulated call statistics.
func (e *Embedder) Stats() domain.ProviderStats {
	return e.stats.snapshot()
}

// Close releases the wrapped provider.
func (e *Embedder) Close() error {
	return e.provider.Close()
}

