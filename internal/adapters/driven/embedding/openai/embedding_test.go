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

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newTestProvider(t *testing.T, cfg Config, handler http.HandlerFunc) *EmbeddingProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test"
	}
	p, err := NewEmbeddingProvider(cfg)
	require.NoError(t, err)
	return p
}

func writeEmbeddings(w http.ResponseWriter, vectors [][]float32, promptTokens int) {
	data := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-3-small",
		"usage":  map[string]int{"prompt_tokens": promptTokens, "total_tokens": promptTokens},
	})
}

func TestNewEmbeddingProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingProvider(Config{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderConfig))
}

func TestNewEmbeddingProvider_Dimensions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		want      int
		shortened bool
	}{
		{"default model", Config{APIKey: "k"}, 1536, false},
		{"large model", Config{APIKey: "k", Model: "text-embedding-3-large"}, 3072, false},
		{"shortened v3", Config{APIKey: "k", Model: "text-embedding-3-large", Dimensions: 256}, 256, true},
		{"ada ignores override", Config{APIKey: "k", Model: "text-embedding-ada-002", Dimensions: 256}, 1536, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewEmbeddingProvider(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Dimensions())
			assert.Equal(t, tt.shortened, p.shortened)
		})
	}
}

func TestEmbedBatch(t *testing.T) {
	p := newTestProvider(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Zero(t, req.Dimensions)

		writeEmbeddings(w, [][]float32{{1, 0}, {0, 1}}, 10)
	})

	results, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float32{1, 0}, results[0].Vector)
	assert.Equal(t, []float32{0, 1}, results[1].Vector)
	assert.Equal(t, 5, results[0].TokenCount)
}

func TestEmbedBatch_SendsDimensionsWhenShortened(t *testing.T) {
	p := newTestProvider(t, Config{Model: "text-embedding-3-small", Dimensions: 2}, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Dimensions)
		writeEmbeddings(w, [][]float32{{0.5, 0.5}}, 1)
	})

	res, err := p.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dimensions)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	p := newTestProvider(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(w, [][]float32{{1}}, 1)
	})

	_, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "1 embeddings returned for 2 inputs")
}

func TestEmbedBatch_Empty(t *testing.T) {
	p, err := NewEmbeddingProvider(Config{APIKey: "k"})
	require.NoError(t, err)

	results, err := p.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbed_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			_, err := p.Embed(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, domain.ErrProviderConfig))
		})
	}
}

func TestModelInfo(t *testing.T) {
	p, err := NewEmbeddingProvider(Config{APIKey: "k"})
	require.NoError(t, err)

	info := p.ModelInfo()
	assert.Equal(t, DefaultModel, info.Name)
	assert.Equal(t, domain.AIProviderOpenAI, info.Provider)
	assert.Equal(t, 1536, info.Dimensions)
	assert.NoError(t, p.Close())
}
