package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GenerationProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewGenerationProvider(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)
	return p
}

func TestNewGenerationProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationProvider(Config{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderConfig))
}

func TestGenerate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, defaultOutputTokens, req.MaxTokens)
		assert.Contains(t, req.System, "be brief")
		assert.Contains(t, req.System, `{"type":"object"}`)

		_, _ = w.Write([]byte(`{
			"model": "claude-test",
			"content": [{"type":"text","text":"{\"answer\":"},{"type":"text","text":"\"ok\"}"}],
			"usage": {"input_tokens": 20, "output_tokens": 4}
		}`))
	})

	res, err := p.Generate(context.Background(), domain.GenerationRequest{
		SystemPrompt: "be brief",
		Prompt:       "question",
		Schema:       &domain.ResponseSchema{Name: "answer", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"ok"}`, res.Text)
	assert.Equal(t, 20, res.PromptTokens)
	assert.Equal(t, 4, res.CompletionTokens)
}

func TestSystemPrompt(t *testing.T) {
	schema := &domain.ResponseSchema{Schema: json.RawMessage(`{}`)}

	assert.Equal(t, "sys", systemPrompt(domain.GenerationRequest{SystemPrompt: "sys"}))
	assert.True(t, len(systemPrompt(domain.GenerationRequest{Schema: schema})) > 0)
	assert.Contains(t, systemPrompt(domain.GenerationRequest{SystemPrompt: "sys", Schema: schema}), "sys\n\n")
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
		contains  string
	}{
		{"bad key", http.StatusUnauthorized, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`, true, "invalid x-api-key"},
		{"overloaded", 529, `{"error":{"type":"overloaded_error","message":"Overloaded"}}`, false, "Overloaded"},
		{"rate limited", http.StatusTooManyRequests, `{}`, false, "429"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, domain.ErrProviderConfig))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestGenerate_NoContent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	})

	_, err := p.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "no response content")
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, p.Ping(context.Background()))
	assert.Equal(t, domain.AIProviderAnthropic, p.ModelInfo().Provider)
}
