package domain

// AIProvider names a service that embeds text, generates answers, or both.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

type providerTraits struct {
	local     bool
	embedding bool
}

var providers = map[AIProvider]providerTraits{
	AIProviderOllama:    {local: true, embedding: true},
	AIProviderOpenAI:    {embedding: true},
	AIProviderAnthropic: {},
}

// IsValid reports whether p is a known provider.
func (p AIProvider) IsValid() bool {
	_, ok := providers[p]
	return ok
}

// IsLocal reports whether p runs on the user's machine. Local providers get
// the gentler retry and batching policy and need no API key.
func (p AIProvider) IsLocal() bool {
	return providers[p].local
}

// RequiresAPIKey reports whether p is a hosted API needing a key.
func (p AIProvider) RequiresAPIKey() bool {
	return p.IsValid() && !p.IsLocal()
}

// SupportsEmbeddings reports whether p offers an embedding endpoint.
func (p AIProvider) SupportsEmbeddings() bool {
	return providers[p].embedding
}

// EmbeddingSettings configures one embedding provider.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// Dimensions is the deployment-wide vector size. Every stored chunk and
	// every query vector must have exactly this many components.
	Dimensions int
}

// IsConfigured reports whether the settings name an embedding provider and
// carry the key it needs.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && (!e.Provider.RequiresAPIKey() || e.APIKey != "")
}

// LLMSettings configures one generation provider.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether the settings name a provider and carry the
// key it needs.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && (!l.Provider.RequiresAPIKey() || l.APIKey != "")
}

// ChunkingStrategy selects the chunking engine used during ingestion.
type ChunkingStrategy string

// Chunking strategies.
const (
	// ChunkingStandard splits each page by token budget.
	ChunkingStandard ChunkingStrategy = "standard"

	// ChunkingHierarchical splits along detected section boundaries first.
	ChunkingHierarchical ChunkingStrategy = "hierarchical"
)

// IsValid returns true if the strategy is recognised.
func (s ChunkingStrategy) IsValid() bool {
	return s == ChunkingStandard || s == ChunkingHierarchical
}

// ChunkingSettings holds chunking defaults.
type ChunkingSettings struct {
	Strategy           ChunkingStrategy
	ChunkSizeTokens    int
	ChunkOverlapTokens int
	PreserveSentences  bool
	DetectSections     bool
	EnhancedMetadata   bool
}

// DefaultChunkingSettings returns the chunking defaults.
func DefaultChunkingSettings() ChunkingSettings {
	return ChunkingSettings{
		Strategy:           ChunkingStandard,
		ChunkSizeTokens:    700,
		ChunkOverlapTokens: 120,
		PreserveSentences:  true,
		DetectSections:     true,
		EnhancedMetadata:   true,
	}
}

// RetrievalSettings holds query-time defaults.
type RetrievalSettings struct {
	SimilarityThreshold float64
	TopK                int
	MaxContextTokens    int
	MaxSources          int
	UseClassification   bool
}

// DefaultRetrievalSettings returns the query-time defaults for a generation provider.
func DefaultRetrievalSettings(provider AIProvider) RetrievalSettings {
	return RetrievalSettings{
		SimilarityThreshold: 0.65,
		TopK:                10,
		MaxContextTokens:    DefaultMaxContextTokens(provider),
		MaxSources:          5,
		UseClassification:   true,
	}
}

// DefaultMaxContextTokens returns the context budget for a generation provider.
// Hosted models get a larger budget than local ones.
func DefaultMaxContextTokens(provider AIProvider) int {
	if provider.IsValid() && !provider.IsLocal() {
		return 6000
	}
	return 3000
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
