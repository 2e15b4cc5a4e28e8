package openai

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

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens      int `json:"max_tokens"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema *struct {
			Name   string          `json:"name"`
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GenerationProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewGenerationProvider(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)
	return p
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 30, "completion_tokens": 7, "total_tokens": 37},
	})
}

func TestNewGenerationProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationProvider(Config{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderConfig))
}

func TestGenerate_Structured(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		require.NotNil(t, req.ResponseFormat.JSONSchema)
		assert.Equal(t, "procedural_answer", req.ResponseFormat.JSONSchema.Name)
		assert.JSONEq(t, `{"type":"object"}`, string(req.ResponseFormat.JSONSchema.Schema))

		writeCompletion(w, `{"answer":"done"}`)
	})

	res, err := p.Generate(context.Background(), domain.GenerationRequest{
		SystemPrompt: "sys",
		Prompt:       "how do I",
		MaxTokens:    500,
		Temperature:  0.05,
		Schema:       &domain.ResponseSchema{Name: "procedural_answer", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"done"}`, res.Text)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, 37, res.TotalTokens())
}

func TestGenerate_Plain(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		assert.Nil(t, req.ResponseFormat)
		writeCompletion(w, "plain")
	})

	res, err := p.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Text)
}

func TestGenerate_NoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	})

	_, err := p.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	assert.ErrorContains(t, err, "no response choices")
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"not found", http.StatusNotFound, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"bad gateway", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"rejected","type":"invalid_request_error"}}`))
			})

			_, err := p.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, domain.ErrProviderConfig))
		})
	}
}

func TestModelInfo(t *testing.T) {
	p, err := NewGenerationProvider(Config{APIKey: "k"})
	require.NoError(t, err)

	info := p.ModelInfo()
	assert.Equal(t, DefaultModel, info.Name)
	assert.Equal(t, domain.AIProviderOpenAI, info.Provider)
	assert.NoError(t, p.Close())
}
