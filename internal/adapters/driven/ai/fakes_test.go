package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingProvider  = (*fakeEmbedding)(nil)
	_ driven.GenerationProvider = (*fakeGeneration)(nil)
)

// fakeEmbedding is a scriptable embedding provider.
type fakeEmbedding struct {
	provider   domain.AIProvider
	dimensions int
	embedFn    func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	batchFn    func(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
	pingErr    error

	mu         sync.Mutex
	batchSizes []int
	embedCalls atomic.Int32
	closed     atomic.Bool
}

func newFakeEmbedding(dimensions int) *fakeEmbedding {
	return &fakeEmbedding{provider: domain.AIProviderOllama, dimensions: dimensions}
}

func (f *fakeEmbedding) vector(text string) domain.EmbeddingResult {
	v := make([]float32, f.dimensions)
	if f.dimensions > 0 {
		v[0] = float32(len(text))
	}
	return domain.EmbeddingResult{Vector: v, Dimensions: f.dimensions, Model: "fake-embed", TokenCount: len(text)}
}

func (f *fakeEmbedding) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	f.embedCalls.Add(1)
	if f.embedFn != nil {
		return f.embedFn(ctx, text)
	}
	return f.vector(text), nil
}

func (f *fakeEmbedding) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(texts))
	f.mu.Unlock()

	if f.batchFn != nil {
		return f.batchFn(ctx, texts)
	}
	out := make([]domain.EmbeddingResult, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedding) Dimensions() int { return f.dimensions }

func (f *fakeEmbedding) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: "fake-embed", Provider: f.provider, Dimensions: f.dimensions}
}

func (f *fakeEmbedding) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeEmbedding) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeGeneration is a scriptable generation provider.
type fakeGeneration struct {
	provider   domain.AIProvider
	generateFn func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
	pingErr    error
	calls      atomic.Int32
	closed     atomic.Bool
}

func (f *fakeGeneration) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	f.calls.Add(1)
	if f.generateFn != nil {
		return f.generateFn(ctx, req)
	}
	return &domain.GenerationResult{Text: "ok", Model: "fake-llm", PromptTokens: 10, CompletionTokens: 5}, nil
}

func (f *fakeGeneration) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: "fake-llm", Provider: f.provider, MaxTokens: 4096}
}

func (f *fakeGeneration) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeGeneration) Close() error {
	f.closed.Store(true)
	return nil
}

// fastPolicy retries without meaningful delays.
func fastPolicy(retries int) Policy {
	return Policy{
		MaxRetries:   retries,
		RetryDelay:   time.Millisecond,
		Timeout:      time.Second,
		MaxBatchSize: 10,
	}
}

var errTransient = errors.New("connection reset")
