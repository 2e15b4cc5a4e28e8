package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// --- Mock implementations ---

// wordSizer counts whitespace-separated words as tokens.
type wordSizer struct{}

func (wordSizer) Count(text string) int { return len(strings.Fields(text)) }

// mapSource serves document bytes from a map keyed by storage path.
type mapSource struct {
	files map[string][]byte
	err   error
}

func (s *mapSource) Fetch(_ context.Context, path string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return data, nil
}

// mockEmbedder returns a fixed vector, or per-index failures.
type mockEmbedder struct {
	mu       sync.Mutex
	vector   []float32
	failAt   map[int]string
	embedErr error
	batchErr error
	calls    int
}

func newMockEmbedder(vector ...float32) *mockEmbedder {
	if len(vector) == 0 {
		vector = []float32{1, 0, 0}
	}
	return &mockEmbedder{vector: vector}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return domain.EmbeddingResult{}, m.embedErr
	}
	return domain.EmbeddingResult{Vector: m.vector, Dimensions: len(m.vector), Model: "mock-embed"}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) (*domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	result := &domain.BatchEmbeddingResult{Results: make([]domain.EmbeddingResult, len(texts))}
	// Report failures in reverse index order to exercise lowest-index selection.
	for i := len(texts) - 1; i >= 0; i-- {
		if msg, ok := m.failAt[i]; ok {
			result.Errors = append(result.Errors, domain.BatchItemError{Index: i, Error: msg})
			continue
		}
		result.Results[i] = domain.EmbeddingResult{Vector: m.vector, Dimensions: len(m.vector), Model: "mock-embed"}
	}
	return result, nil
}

func (m *mockEmbedder) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: "mock-embed", Provider: domain.AIProviderOllama, Dimensions: len(m.vector)}
}

// mockGenerator records requests and returns a canned completion.
type mockGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	provider domain.AIProvider
	requests []domain.GenerationRequest
}

func (m *mockGenerator) Generate(_ context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.GenerationResult{Text: m.text, Model: "mock-llm", PromptTokens: 40, CompletionTokens: 10}, nil
}

func (m *mockGenerator) ModelInfo() domain.ModelInfo {
	provider := m.provider
	if provider == "" {
		provider = domain.AIProviderOllama
	}
	return domain.ModelInfo{Name: "mock-llm", Provider: provider}
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// staticSearch returns fixed results and records the last query.
type staticSearch struct {
	results []domain.SearchResult
	err     error
	last    domain.SearchQuery
}

func (s *staticSearch) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	if q.TopK > 0 && q.TopK < len(s.results) {
		return s.results[:q.TopK], nil
	}
	return s.results, nil
}

// failingQueue rejects every job.
type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, domain.IngestionJob) error {
	return errors.New("broker unreachable")
}

func (failingQueue) Dequeue(context.Context) (domain.IngestionJob, error) {
	return domain.IngestionJob{}, domain.ErrQueueClosed
}

func (failingQueue) Close() error { return nil }

// recordingProcessor records the jobs it was given.
type recordingProcessor struct {
	mu    sync.Mutex
	jobs  []domain.IngestionJob
	ctxOK []bool
	err   error
}

func (p *recordingProcessor) Process(ctx context.Context, job domain.IngestionJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	p.ctxOK = append(p.ctxOK, ctx.Err() == nil)
	return p.err
}

func (p *recordingProcessor) processed() []domain.IngestionJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.IngestionJob(nil), p.jobs...)
}

// mapPromptStore serves prompt overrides from a map.
type mapPromptStore map[string]string

func (m mapPromptStore) Load(name string) (string, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (mapPromptStore) Reload() {}

var (
	_ driven.DocumentSource  = (*mapSource)(nil)
	_ driven.Embedder        = (*mockEmbedder)(nil)
	_ driven.Generator       = (*mockGenerator)(nil)
	_ driven.SearchOperation = (*staticSearch)(nil)
	_ driven.IngestionQueue  = failingQueue{}
	_ driven.PromptStore     = mapPromptStore(nil)
	_ JobProcessor           = (*recordingProcessor)(nil)
)
