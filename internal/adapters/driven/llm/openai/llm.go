// Package openai provides a generation provider adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure GenerationProvider implements the interface.
var _ driven.GenerationProvider = (*GenerationProvider)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = openai.GPT4oMini
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 128000
)

// Config holds configuration for the OpenAI generation provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the HTTP client timeout (default: 120s).
	Timeout time.Duration
}

// GenerationProvider produces completions using the OpenAI chat API.
type GenerationProvider struct {
	client *openai.Client
	model  string
}

// NewGenerationProvider creates a new OpenAI generation provider.
func NewGenerationProvider(cfg Config) (*GenerationProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrProviderConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &GenerationProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Generate runs a chat completion. A schema is sent as a json_schema
// response format.
func (p *GenerationProvider) Generate(ctx context.Context, in domain.GenerationRequest) (*domain.GenerationResult, error) {
	var messages []openai.ChatCompletionMessage
	if in.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: in.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: in.Prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   in.MaxTokens,
		Temperature: float32(in.Temperature),
	}
	if in.Schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   in.Schema.Name,
				Schema: in.Schema.Schema,
			},
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no response choices returned")
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &domain.GenerationResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// ModelInfo describes the generation model.
func (p *GenerationProvider) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{
		Name:      p.model,
		Provider:  domain.AIProviderOpenAI,
		MaxTokens: DefaultMaxTokens,
	}
}

// Ping validates the API key by listing models, without running inference.
func (p *GenerationProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", classify(err))
	}
	return nil
}

// Close releases resources.
func (p *GenerationProvider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// classify marks rejected requests as configuration errors so they are not
// retried. Timeouts and rate limits stay retryable.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", domain.ErrProviderConfig, err)
	}
	return err
}
