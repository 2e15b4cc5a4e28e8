package domain

import (
	"encoding/json"
	"time"
)

// EmbeddingResult is the vector produced for one text.
type EmbeddingResult struct {
	Vector     []float32
	Dimensions int
	Model      string
	TokenCount int
}

// BatchItemError records a single input that could not be embedded.
type BatchItemError struct {
	// Index is the position of the input in the original batch.
	Index int

	// Error is the provider error message.
	Error string

	// TextPreview is the start of the failed input, for diagnostics.
	TextPreview string
}

// BatchEmbeddingResult is the outcome of embedding a batch of texts.
// Results is index-aligned with the input; failed entries are zero values
// and have a matching BatchItemError.
type BatchEmbeddingResult struct {
	Results []EmbeddingResult
	Errors  []BatchItemError
}

// Failed returns true if any item could not be embedded.
func (r *BatchEmbeddingResult) Failed() bool {
	return len(r.Errors) > 0
}

// ModelInfo describes the model behind a provider.
type ModelInfo struct {
	Name     string
	Provider AIProvider

	// Dimensions is set for embedding models.
	Dimensions int

	// MaxTokens is set for generation models.
	MaxTokens int
}

// ProviderStats summarises the calls made through a provider.
type ProviderStats struct {
	Requests       int64
	Errors         int64
	AverageLatency time.Duration
	ErrorRate      float64
	TotalCostUSD   float64
}

// ResponseSchema constrains a generation to a JSON document.
type ResponseSchema struct {
	// Name identifies the schema to providers that require one.
	Name string

	// Schema is a JSON Schema object.
	Schema json.RawMessage
}

// GenerationRequest is a single completion request.
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int

	// Schema requests structured output when set.
	Schema *ResponseSchema
}

// GenerationResult is the completion returned by a provider.
type GenerationResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (r *GenerationResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}
