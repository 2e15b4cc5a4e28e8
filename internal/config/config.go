// Package config resolves pagewise settings from defaults, the TOML config
// file, a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Environment variable names.
const (
	EnvEmbeddingProvider         = "EMBEDDING_PROVIDER"
	EnvEmbeddingModel            = "EMBEDDING_MODEL"
	EnvEmbeddingDimensions       = "EMBEDDING_DIMENSIONS"
	EnvEmbeddingBaseURL          = "EMBEDDING_BASE_URL"
	EnvEmbeddingFallbackProvider = "EMBEDDING_FALLBACK_PROVIDER"
	EnvEmbeddingFallbackModel    = "EMBEDDING_FALLBACK_MODEL"

	EnvLLMProvider         = "LLM_PROVIDER"
	EnvLLMModel            = "LLM_MODEL"
	EnvLLMBaseURL          = "LLM_BASE_URL"
	EnvLLMFallbackProvider = "LLM_FALLBACK_PROVIDER"
	EnvLLMFallbackModel    = "LLM_FALLBACK_MODEL"

	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

	EnvProviderMaxRetries = "PROVIDER_MAX_RETRIES"
	EnvProviderRetryDelay = "PROVIDER_RETRY_DELAY"
	EnvProviderTimeout    = "PROVIDER_TIMEOUT"

	EnvChunkSize     = "CHUNK_SIZE_TOKENS"
	EnvChunkOverlap  = "CHUNK_OVERLAP_TOKENS"
	EnvChunkStrategy = "CHUNKING_STRATEGY"

	EnvSimilarityThreshold = "SIMILARITY_THRESHOLD"
	EnvMaxSearchResults    = "MAX_SEARCH_RESULTS"
	EnvMaxContextTokens    = "MAX_CONTEXT_TOKENS"
	EnvQueryClassification = "QUERY_CLASSIFICATION"

	EnvStoreBackend = "STORE_BACKEND"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvDataDir      = "PAGEWISE_DATA_DIR"

	EnvQueueBackend  = "QUEUE_BACKEND"
	EnvRedisURL      = "REDIS_URL"
	EnvIngestWorkers = "INGEST_WORKERS"

	EnvDocumentRoot = "DOCUMENT_ROOT"
	EnvAWSRegion    = "AWS_REGION"
)

// tomlKeys maps environment names to their dot-notation key in config.toml.
var tomlKeys = map[string]string{
	EnvEmbeddingProvider:         "embedding.provider",
	EnvEmbeddingModel:            "embedding.model",
	EnvEmbeddingDimensions:       "embedding.dimensions",
	EnvEmbeddingBaseURL:          "embedding.base_url",
	EnvEmbeddingFallbackProvider: "embedding.fallback_provider",
	EnvEmbeddingFallbackModel:    "embedding.fallback_model",
	EnvLLMProvider:               "llm.provider",
	EnvLLMModel:                  "llm.model",
	EnvLLMBaseURL:                "llm.base_url",
	EnvLLMFallbackProvider:       "llm.fallback_provider",
	EnvLLMFallbackModel:          "llm.fallback_model",
	EnvProviderMaxRetries:        "provider.max_retries",
	EnvProviderRetryDelay:        "provider.retry_delay",
	EnvProviderTimeout:           "provider.timeout",
	EnvChunkSize:                 "chunking.size_tokens",
	EnvChunkOverlap:              "chunking.overlap_tokens",
	EnvChunkStrategy:             "chunking.strategy",
	EnvSimilarityThreshold:       "retrieval.similarity_threshold",
	EnvMaxSearchResults:          "retrieval.max_results",
	EnvMaxContextTokens:          "retrieval.max_context_tokens",
	EnvQueryClassification:       "retrieval.query_classification",
	EnvStoreBackend:              "store.backend",
	EnvDatabaseURL:               "store.database_url",
	EnvQueueBackend:              "queue.backend",
	EnvRedisURL:                  "queue.redis_url",
	EnvIngestWorkers:             "queue.workers",
	EnvDocumentRoot:              "sources.document_root",
	EnvAWSRegion:                 "sources.aws_region",
}

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Default configuration values.
const (
	DefaultStoreBackend  = StoreSQLite
	DefaultQueueBackend  = QueueMemory
	DefaultIngestWorkers = 2
	DefaultProvider      = domain.AIProviderOllama
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ProviderOverrides replaces parts of the built-in provider policy.
// Zero values keep the per-provider default.
type ProviderOverrides struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// StoreSettings selects the persistence backend.
type StoreSettings struct {
	Backend     string
	DatabaseURL string
}

// QueueSettings selects the ingestion queue and worker count.
type QueueSettings struct {
	Backend  string
	RedisURL string
	Workers  int
}

// SourceSettings locates raw documents.
type SourceSettings struct {
	// DocumentRoot confines local paths. Empty means the working directory.
	DocumentRoot string

	// AWSRegion enables the s3:// source when set.
	AWSRegion string
}

// Config is the fully resolved application configuration.
type Config struct {
	// DataDir holds config.toml, .env, the sqlite database and prompt overrides.
	DataDir string

	Embedding         domain.EmbeddingSettings
	EmbeddingFallback domain.EmbeddingSettings
	LLM               domain.LLMSettings
	LLMFallback       domain.LLMSettings
	Providers         ProviderOverrides
	Chunking          domain.ChunkingSettings
	Retrieval         domain.RetrievalSettings
	Store             StoreSettings
	Queue             QueueSettings
	Sources           SourceSettings
}

// DefaultDataDir returns ~/.pagewise.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pagewise"), nil
}

// ResolveDataDir returns dataDir, else PAGEWISE_DATA_DIR, else ~/.pagewise.
func ResolveDataDir(dataDir string) (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir, nil
	}
	return DefaultDataDir()
}

// FileKey maps a setting, named by environment variable or config.toml key,
// to its config.toml key. API keys have no file key.
func FileKey(name string) (string, bool) {
	if key, ok := tomlKeys[strings.ToUpper(name)]; ok {
		return key, true
	}
	name = strings.ToLower(name)
	for _, key := range tomlKeys {
		if key == name {
			return key, true
		}
	}
	return "", false
}

// SetFileValue writes one setting to config.toml in the data directory and
// returns the file path.
func SetFileValue(dataDir, name, value string) (string, error) {
	key, ok := FileKey(name)
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", ErrInvalidConfig, name)
	}
	dataDir, err := ResolveDataDir(dataDir)
	if err != nil {
		return "", err
	}
	store, err := file.OpenConfigStore(dataDir)
	if err != nil {
		return "", err
	}
	if err := store.Set(key, value); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	return store.Path(), nil
}

// Setting is one resolved value, named by its config.toml key.
type Setting struct {
	Key   string
	Value string
}

// Settings lists the resolved configuration for display. API keys are
// reported only as set or unset.
func (c *Config) Settings() []Setting {
	secret := func(v string) string {
		if v == "" {
			return "(unset)"
		}
		return "(set)"
	}
	itoa := strconv.Itoa

	return []Setting{
		{"data_dir", c.DataDir},
		{"embedding.provider", string(c.Embedding.Provider)},
		{"embedding.model", c.Embedding.Model},
		{"embedding.dimensions", itoa(c.Embedding.Dimensions)},
		{"embedding.base_url", c.Embedding.BaseURL},
		{"embedding.api_key", secret(c.Embedding.APIKey)},
		{"embedding.fallback_provider", string(c.EmbeddingFallback.Provider)},
		{"embedding.fallback_model", c.EmbeddingFallback.Model},
		{"llm.provider", string(c.LLM.Provider)},
		{"llm.model", c.LLM.Model},
		{"llm.base_url", c.LLM.BaseURL},
		{"llm.api_key", secret(c.LLM.APIKey)},
		{"llm.fallback_provider", string(c.LLMFallback.Provider)},
		{"llm.fallback_model", c.LLMFallback.Model},
		{"provider.max_retries", itoa(c.Providers.MaxRetries)},
		{"provider.retry_delay", c.Providers.RetryDelay.String()},
		{"provider.timeout", c.Providers.Timeout.String()},
		{"chunking.strategy", string(c.Chunking.Strategy)},
		{"chunking.size_tokens", itoa(c.Chunking.ChunkSizeTokens)},
		{"chunking.overlap_tokens", itoa(c.Chunking.ChunkOverlapTokens)},
		{"retrieval.similarity_threshold", strconv.FormatFloat(c.Retrieval.SimilarityThreshold, 'g', -1, 64)},
		{"retrieval.max_results", itoa(c.Retrieval.TopK)},
		{"retrieval.max_context_tokens", itoa(c.Retrieval.MaxContextTokens)},
		{"retrieval.query_classification", strconv.FormatBool(c.Retrieval.UseClassification)},
		{"store.backend", c.Store.Backend},
		{"store.database_url", redactURL(c.Store.DatabaseURL)},
		{"queue.backend", c.Queue.Backend},
		{"queue.redis_url", redactURL(c.Queue.RedisURL)},
		{"queue.workers", itoa(c.Queue.Workers)},
		{"sources.document_root", c.Sources.DocumentRoot},
		{"sources.aws_region", c.Sources.AWSRegion},
	}
}

// redactURL hides the password in a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(set)"
	}
	return u.Redacted()
}

// Load resolves the configuration. dataDir overrides PAGEWISE_DATA_DIR when
// non-empty. The result is not validated; call Validate before use.
func Load(dataDir string) (*Config, error) {
	dataDir, err := ResolveDataDir(dataDir)
	if err != nil {
		return nil, err
	}

	store, err := file.OpenConfigStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Join(dataDir, file.ConfigFile), err)
	}

	dotenv, err := readDotenv(filepath.Join(dataDir, ".env"), ".env")
	if err != nil {
		return nil, err
	}

	cfg, err := resolve(layers{env: os.LookupEnv, dotenv: dotenv, toml: store})
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// readDotenv merges the given .env files; earlier files win. Missing files are skipped.
func readDotenv(paths ...string) (map[string]string, error) {
	merged := make(map[string]string)
	for i := len(paths) - 1; i >= 0; i-- {
		values, err := godotenv.Read(paths[i])
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", paths[i], err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return merged, nil
}

// layers looks a key up in the environment, then .env, then config.toml.
type layers struct {
	env    func(string) (string, bool)
	dotenv map[string]string
	toml   driven.ConfigStore
}

func (l layers) lookup(key string) (string, bool) {
	if l.env != nil {
		if v, ok := l.env(key); ok && v != "" {
			return v, true
		}
	}
	if v, ok := l.dotenv[key]; ok && v != "" {
		return v, true
	}
	if l.toml != nil {
		if tk, ok := tomlKeys[key]; ok {
			if v, ok := l.toml.Lookup(tk); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
	}
	return "", false
}

// parser accumulates the first conversion error so resolve reads linearly.
type parser struct {
	l   layers
	err error
}

func (p *parser) getString(key, def string) string {
	if v, ok := p.l.lookup(key); ok {
		return v
	}
	return def
}

func (p *parser) getInt(key string, def int) int {
	v, ok := p.l.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) getFloat(key string, def float64) float64 {
	v, ok := p.l.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) getBool(key string, def bool) bool {
	v, ok := p.l.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) getDuration(key string) time.Duration {
	v, ok := p.l.lookup(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return 0
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err)
	}
}

func resolve(l layers) (*Config, error) {
	p := &parser{l: l}
	cfg := &Config{}

	openAIKey := p.getString(EnvOpenAIAPIKey, "")
	anthropicKey := p.getString(EnvAnthropicAPIKey, "")
	keyFor := func(provider domain.AIProvider) string {
		switch provider {
		case domain.AIProviderOpenAI:
			return openAIKey
		case domain.AIProviderAnthropic:
			return anthropicKey
		default:
			return ""
		}
	}

	// 1. Embedding
	cfg.Embedding.Provider = domain.AIProvider(strings.ToLower(p.getString(EnvEmbeddingProvider, string(DefaultProvider))))
	cfg.Embedding.Model = p.getString(EnvEmbeddingModel, domain.DefaultEmbeddingModels()[cfg.Embedding.Provider])
	cfg.Embedding.BaseURL = p.getString(EnvEmbeddingBaseURL, "")
	cfg.Embedding.APIKey = keyFor(cfg.Embedding.Provider)
	cfg.Embedding.Dimensions = p.getInt(EnvEmbeddingDimensions, domain.EmbeddingDimensions()[cfg.Embedding.Model])

	if fb := strings.ToLower(p.getString(EnvEmbeddingFallbackProvider, "")); fb != "" {
		cfg.EmbeddingFallback.Provider = domain.AIProvider(fb)
		cfg.EmbeddingFallback.Model = p.getString(EnvEmbeddingFallbackModel, domain.DefaultEmbeddingModels()[cfg.EmbeddingFallback.Provider])
		cfg.EmbeddingFallback.APIKey = keyFor(cfg.EmbeddingFallback.Provider)
		// The fallback must produce vectors the store accepts.
		cfg.EmbeddingFallback.Dimensions = cfg.Embedding.Dimensions
	}

	// 2. Generation
	cfg.LLM.Provider = domain.AIProvider(strings.ToLower(p.getString(EnvLLMProvider, string(DefaultProvider))))
	cfg.LLM.Model = p.getString(EnvLLMModel, domain.DefaultLLMModels()[cfg.LLM.Provider])
	cfg.LLM.BaseURL = p.getString(EnvLLMBaseURL, "")
	cfg.LLM.APIKey = keyFor(cfg.LLM.Provider)

	if fb := strings.ToLower(p.getString(EnvLLMFallbackProvider, "")); fb != "" {
		cfg.LLMFallback.Provider = domain.AIProvider(fb)
		cfg.LLMFallback.Model = p.getString(EnvLLMFallbackModel, domain.DefaultLLMModels()[cfg.LLMFallback.Provider])
		cfg.LLMFallback.APIKey = keyFor(cfg.LLMFallback.Provider)
	}

	// 3. Provider policy
	cfg.Providers = ProviderOverrides{
		MaxRetries: p.getInt(EnvProviderMaxRetries, 0),
		RetryDelay: p.getDuration(EnvProviderRetryDelay),
		Timeout:    p.getDuration(EnvProviderTimeout),
	}

	// 4. Chunking
	cfg.Chunking = domain.DefaultChunkingSettings()
	cfg.Chunking.ChunkSizeTokens = p.getInt(EnvChunkSize, cfg.Chunking.ChunkSizeTokens)
	cfg.Chunking.ChunkOverlapTokens = p.getInt(EnvChunkOverlap, cfg.Chunking.ChunkOverlapTokens)
	cfg.Chunking.Strategy = domain.ChunkingStrategy(strings.ToLower(p.getString(EnvChunkStrategy, string(cfg.Chunking.Strategy))))

	// 5. Retrieval
	cfg.Retrieval = domain.DefaultRetrievalSettings(cfg.LLM.Provider)
	cfg.Retrieval.SimilarityThreshold = p.getFloat(EnvSimilarityThreshold, cfg.Retrieval.SimilarityThreshold)
	cfg.Retrieval.TopK = p.getInt(EnvMaxSearchResults, cfg.Retrieval.TopK)
	cfg.Retrieval.MaxContextTokens = p.getInt(EnvMaxContextTokens, cfg.Retrieval.MaxContextTokens)
	cfg.Retrieval.UseClassification = p.getBool(EnvQueryClassification, cfg.Retrieval.UseClassification)

	// 6. Infrastructure
	cfg.Store = StoreSettings{
		Backend:     strings.ToLower(p.getString(EnvStoreBackend, DefaultStoreBackend)),
		DatabaseURL: p.getString(EnvDatabaseURL, ""),
	}
	cfg.Queue = QueueSettings{
		Backend:  strings.ToLower(p.getString(EnvQueueBackend, DefaultQueueBackend)),
		RedisURL: p.getString(EnvRedisURL, ""),
		Workers:  p.getInt(EnvIngestWorkers, DefaultIngestWorkers),
	}
	cfg.Sources = SourceSettings{
		DocumentRoot: p.getString(EnvDocumentRoot, ""),
		AWSRegion:    p.getString(EnvAWSRegion, ""),
	}

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if !c.Embedding.Provider.SupportsEmbeddings() {
		add("unknown embedding provider %q", c.Embedding.Provider)
	} else if !c.Embedding.IsConfigured() {
		add("embedding provider %s requires %s", c.Embedding.Provider, apiKeyEnv(c.Embedding.Provider))
	}
	if c.Embedding.Model == "" {
		add("embedding model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		add("embedding dimensions must be positive; set %s for model %q", EnvEmbeddingDimensions, c.Embedding.Model)
	}
	if fb := c.EmbeddingFallback; fb.Provider != "" {
		if !fb.Provider.SupportsEmbeddings() {
			add("unknown embedding fallback provider %q", fb.Provider)
		} else if !fb.IsConfigured() {
			add("embedding fallback provider %s requires %s", fb.Provider, apiKeyEnv(fb.Provider))
		}
	}

	if !c.LLM.Provider.IsValid() {
		add("unknown generation provider %q", c.LLM.Provider)
	} else if !c.LLM.IsConfigured() {
		add("generation provider %s requires %s", c.LLM.Provider, apiKeyEnv(c.LLM.Provider))
	}
	if fb := c.LLMFallback; fb.Provider != "" {
		if !fb.Provider.IsValid() {
			add("unknown generation fallback provider %q", fb.Provider)
		} else if !fb.IsConfigured() {
			add("generation fallback provider %s requires %s", fb.Provider, apiKeyEnv(fb.Provider))
		}
	}

	if c.Providers.MaxRetries < 0 || c.Providers.RetryDelay < 0 || c.Providers.Timeout < 0 {
		add("provider policy overrides must not be negative")
	}

	if !c.Chunking.Strategy.IsValid() {
		add("unknown chunking strategy %q", c.Chunking.Strategy)
	}
	if c.Chunking.ChunkSizeTokens <= 0 {
		add("chunk size must be positive, got %d", c.Chunking.ChunkSizeTokens)
	}
	if c.Chunking.ChunkOverlapTokens <= 0 || c.Chunking.ChunkOverlapTokens >= c.Chunking.ChunkSizeTokens {
		add("chunk overlap must be in (0, %d), got %d", c.Chunking.ChunkSizeTokens, c.Chunking.ChunkOverlapTokens)
	}

	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		add("similarity threshold must be in [0,1], got %v", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.TopK <= 0 {
		add("max search results must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxContextTokens <= 0 {
		add("max context tokens must be positive, got %d", c.Retrieval.MaxContextTokens)
	}

	switch c.Store.Backend {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			add("store backend postgres requires %s", EnvDatabaseURL)
		}
	default:
		add("unknown store backend %q", c.Store.Backend)
	}

	switch c.Queue.Backend {
	case QueueMemory:
	case QueueRedis:
		if c.Queue.RedisURL == "" {
			add("queue backend redis requires %s", EnvRedisURL)
		}
	default:
		add("unknown queue backend %q", c.Queue.Backend)
	}
	if c.Queue.Workers <= 0 {
		add("ingest workers must be positive, got %d", c.Queue.Workers)
	}

	return errors.Join(errs...)
}

func apiKeyEnv(provider domain.AIProvider) string {
	if provider == domain.AIProviderAnthropic {
		return EnvAnthropicAPIKey
	}
	return EnvOpenAIAPIKey
}
