// Package anthropic generates answers with the Anthropic Messages API.
package anthropic

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/jsonapi"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

var _ driven.GenerationProvider = (*GenerationProvider)(nil)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 200000

	// defaultOutputTokens applies when a request sets no limit; the API requires one.
	defaultOutputTokens = 1024
	anthropicVersion    = "2023-06-01"
)

// Config configures the provider. APIKey is required; other zero fields
// take the defaults above.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GenerationProvider calls POST /v1/messages.
type GenerationProvider struct {
	api   *jsonapi.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGenerationProvider(cfg Config) (*GenerationProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrProviderConfig)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	return &GenerationProvider{
		api:   jsonapi.New("anthropic", cmp.Or(cfg.BaseURL, DefaultBaseURL), cfg.Timeout, header),
		model: cmp.Or(cfg.Model, DefaultModel),
	}, nil
}

// Generate sends one user turn. The API takes no response schema, so a
// schema becomes an instruction appended to the system prompt.
func (p *GenerationProvider) Generate(ctx context.Context, in domain.GenerationRequest) (*domain.GenerationResult, error) {
	req := messagesRequest{
		Model:       p.model,
		Messages:    []message{{Role: "user", Content: in.Prompt}},
		MaxTokens:   in.MaxTokens,
		System:      systemPrompt(in),
		Temperature: max(in.Temperature, 0),
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultOutputTokens
	}

	var resp messagesResponse
	if err := p.api.Post(ctx, "/v1/messages", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("anthropic: %s: %s", resp.Error.Type, resp.Error.Message)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("anthropic: no response content returned")
	}

	return &domain.GenerationResult{
		Text:             text.String(),
		Model:            cmp.Or(resp.Model, p.model),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

func systemPrompt(in domain.GenerationRequest) string {
	if in.Schema == nil || len(in.Schema.Schema) == 0 {
		return in.SystemPrompt
	}
	instruction := "Respond with a single JSON object and no other text. " +
		"It must match this JSON Schema:\n" + string(in.Schema.Schema)
	if in.SystemPrompt == "" {
		return instruction
	}
	return in.SystemPrompt + "\n\n" + instruction
}

func (p *GenerationProvider) ModelInfo() domain.ModelInfo {
	return domain.ModelInfo{Name: p.model, Provider: domain.AIProviderAnthropic, MaxTokens: DefaultMaxTokens}
}

// Ping lists models, which checks the key without spending tokens.
func (p *GenerationProvider) Ping(ctx context.Context) error {
	return p.api.Get(ctx, "/v1/models", nil)
}

func (p *GenerationProvider) Close() error {
	return nil
}
