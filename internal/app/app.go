// Package app wires configuration, adapters and services together.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/ai"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract"
	memqueue "github.com/custodia-labs/pagewise/internal/adapters/driven/queue/memory"
	redisqueue "github.com/custodia-labs/pagewise/internal/adapters/driven/queue/redis"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/source"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pagewise/internal/config"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/core/services"
	"github.com/custodia-labs/pagewise/internal/logger"
	"github.com/custodia-labs/pagewise/internal/postprocessors"
	"github.com/custodia-labs/pagewise/internal/tokens"
)

// App holds the wired adapters and services for one process.
// Providers are created on first use so commands that never embed or
// generate do not need a reachable model backend.
type App struct {
	Config     *config.Config
	Metrics    *prometheus.Registry
	Factory    *ai.Factory
	Statuses   driven.DocumentStatusStore
	Chunks     driven.ChunkStore
	Search     driven.SearchOperation
	Queue      driven.IngestionQueue
	Source     driven.DocumentSource
	Local      *source.Local
	Extractors *extract.Registry
	Prompts    *file.PromptStore
	Sizer      tokens.Sizer
	Ingestion  *services.IngestionService

	mu      sync.Mutex
	answers *services.AnswerService
	pipe    *services.Pipeline
	closers []func() error
}

// New builds the application from validated configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Metrics:    prometheus.NewRegistry(),
		Extractors: extract.NewDefaultRegistry(),
	}
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 1. Token counting
	counter, err := tokens.NewCounter(tokens.DefaultEncoding)
	if err != nil {
		logger.Warn("exact token counting unavailable, estimating: %v", err)
		a.Sizer = tokens.EstimateSizer{}
	} else {
		a.Sizer = counter
	}

	// 2. Storage
	if err := a.openStore(ctx); err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}

	// 3. Queue
	if err := a.openQueue(ctx); err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}

	// 4. Document sources
	if err := a.openSources(ctx); err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}

	// 5. Prompts and providers
	a.Prompts, err = file.NewPromptStore(filepath.Join(cfg.DataDir, "prompts"))
	if err != nil {
		a.Close() //nolint:errcheck
		return nil, fmt.Errorf("prompt store: %w", err)
	}
	a.Factory = ai.NewFactory(
		ai.WithPolicy(policyWithOverrides(cfg.Providers)),
		ai.WithRegisterer(a.Metrics),
	)
	a.closers = append(a.closers, a.Factory.Close)

	a.Ingestion = services.NewIngestionService(a.Statuses, a.Queue)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	dims := a.Config.Embedding.Dimensions

	switch a.Config.Store.Backend {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, a.Config.Store.DatabaseURL, dims)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		a.Statuses, a.Chunks, a.Search = store.StatusStore(), store.ChunkStore(), store.SearchOperation()
		a.closers = append(a.closers, store.Close)
	case config.StoreMemory:
		statuses := memory.NewStatusStore()
		chunks := memory.NewChunkStore(dims, statuses)
		a.Statuses, a.Chunks, a.Search = statuses, chunks, chunks
	default:
		store, err := sqlite.NewStore(a.Config.DataDir, dims)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.Statuses, a.Chunks, a.Search = store.StatusStore(), store.ChunkStore(), store.SearchOperation()
		a.closers = append(a.closers, store.Close)
	}
	logger.Debug("Using %s store", a.Config.Store.Backend)
	return nil
}

func (a *App) openQueue(ctx context.Context) error {
	switch a.Config.Queue.Backend {
	case config.QueueRedis:
		q, err := redisqueue.New(ctx, redisqueue.Config{URL: a.Config.Queue.RedisURL})
		if err != nil {
			return fmt.Errorf("open redis queue: %w", err)
		}
		a.Queue = q
	default:
		a.Queue = memqueue.New(memqueue.DefaultCapacity)
	}
	a.closers = append(a.closers, a.Queue.Close)
	logger.Debug("Using %s queue", a.Config.Queue.Backend)
	return nil
}

func (a *App) openSources(ctx context.Context) error {
	local, err := source.NewLocal(a.Config.Sources.DocumentRoot)
	if err != nil {
		return err
	}
	a.Local = local

	var objects driven.DocumentSource
	if region := a.Config.Sources.AWSRegion; region != "" {
		s3, err := source.NewS3FromEnv(ctx, region)
		if err != nil {
			return fmt.Errorf("configure s3 source: %w", err)
		}
		objects = s3
	}
	a.Source = source.NewRouter(local, objects)
	return nil
}

// MemoryQueue reports whether jobs can only be consumed in this process.
func (a *App) MemoryQueue() bool {
	return a.Config.Queue.Backend != config.QueueRedis
}

// Pipeline returns the ingestion pipeline, connecting the embedding
// provider on first use.
func (a *App) Pipeline(ctx context.Context) (*services.Pipeline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pipe != nil {
		return a.pipe, nil
	}

	embedder, err := a.Factory.EmbedderWithFallback(ctx, a.Config.Embedding, a.Config.EmbeddingFallback)
	if err != nil {
		return nil, err
	}

	chunker, err := postprocessors.NewDefaultRegistry(a.Sizer).Build(a.Config.Chunking)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	a.pipe = services.NewPipeline(a.Statuses, a.Source, a.Extractors, chunker, embedder, a.Chunks)
	return a.pipe, nil
}

// Worker returns a queue consumer running the ingestion pipeline.
func (a *App) Worker(ctx context.Context) (*services.Worker, error) {
	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewWorker(a.Queue, pipeline, a.Statuses, a.Config.Queue.Workers), nil
}

// Answers returns the answer service, connecting both providers on first use.
func (a *App) Answers(ctx context.Context) (*services.AnswerService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.answers != nil {
		return a.answers, nil
	}

	embedder, err := a.Factory.EmbedderWithFallback(ctx, a.Config.Embedding, a.Config.EmbeddingFallback)
	if err != nil {
		return nil, err
	}
	generator, err := a.Factory.GeneratorWithFallback(ctx, a.Config.LLM, a.Config.LLMFallback)
	if err != nil {
		return nil, err
	}

	settings := a.Config.Retrieval
	if settings.MaxContextTokens <= 0 {
		settings.MaxContextTokens = domain.DefaultMaxContextTokens(generator.ModelInfo().Provider)
	}
	svc := services.NewAnswerService(embedder, generator, a.Search, a.Sizer, settings)
	svc.SetPromptStore(a.Prompts)
	a.answers = svc
	return svc, nil
}

// ProviderStats returns statistics for every provider used so far.
func (a *App) ProviderStats() map[string]domain.ProviderStats {
	return a.Factory.Stats()
}

// Close releases adapters in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// policyWithOverrides applies configured overrides on top of the
// per-provider defaults.
func policyWithOverrides(o config.ProviderOverrides) ai.PolicyFunc {
	return func(provider domain.AIProvider) ai.Policy {
		p := ai.DefaultPolicy(provider)
		if o.MaxRetries > 0 {
			p.MaxRetries = o.MaxRetries
		}
		if o.RetryDelay > 0 {
			p.RetryDelay = o.RetryDelay
		}
		if o.Timeout > 0 {
			p.Timeout = o.Timeout
		}
		return p
	}
}
