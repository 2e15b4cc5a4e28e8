// Package driven holds the ports the core services call out through:
// providers, sources, extractors, chunkers, stores and the ingestion queue.
//
// Adapters under internal/adapters/driven implement them. This package
// imports only the domain.
//
// Ingestion needs DocumentSource, ExtractorRegistry, Chunker,
// EmbeddingProvider, ChunkStore, DocumentStatusStore and IngestionQueue.
// Answering needs EmbeddingProvider, SearchOperation and GenerationProvider.
// PromptStore and ConfigStore are optional; without them the built-in
// prompts and environment-only configuration apply.
package driven
