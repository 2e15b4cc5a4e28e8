// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"cmp"
	"context"
	"encoding/json"
	"time"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/jsonapi"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

var _ driven.GenerationProvider = (*GenerationProvider)(nil)

const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 8192
)

// Config configures the provider. Zero fields take the defaults above.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GenerationProvider calls Ollama's non-streaming /api/chat.
type GenerationProvider struct {
	api     *jsonapi.Client
	model   string
	timeout time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  *options        `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func NewGenerationProvider(cfg Config) *GenerationProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &GenerationProvider{
		api:     jsonapi.New("ollama", cmp.Or(cfg.BaseURL, DefaultBaseURL), cfg.Timeout, nil),
		model:   cmp.Or(cfg.Model, DefaultModel),
		timeout: cfg.Timeout,
	}
}

// Generate runs one chat turn. A response schema goes in the format field,
// which constrains decoding to matching JSON.
func (p *GenerationProvider) Generate(ctx context.Context, in domain.GenerationRequest) (*domain.GenerationResult, error) {
	req := chatRequest{Model: p.model}
	if in.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: in.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: in.Prompt})
	if in.Schema != nil {
		req.Format = in.Schema.Schema
	}
	if in.MaxTokens > 0 || in.Temperature > 0 {
		req.Options = &options{NumPredict: in.MaxTokens, Temperature: in.Temperature}
	}

	var resp chatResponse
	if err := p.api.Post(ctx, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &domain.GenerationResult{
		Text:             resp.Message.Content,
		Model:            cmp.Or(resp.Model, p.model),
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

func (p *GenerationProvider) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: p.model, Provider: domain.AIProviderOllama, MaxTokens: DefaultMaxTokens}
}

// Ping lists local models, which needs no inference.
func (p *GenerationProvider) Ping(ctx context.Context) error {
	return p.api.Get(ctx, "/api/tags", nil)
}

func (p *GenerationProvider) Close() error {
	return nil
}
