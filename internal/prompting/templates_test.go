package prompting

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// mockPromptStore is a hand-written PromptStore for tests.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("not found")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		queryType   domain.QueryType
		temperature float64
		maxTokens   int
		required    []string
	}{
		{domain.QueryProcedural, 0.05, 1500, []string{"answer", "steps", "citations", "confidence"}},
		{domain.QueryDefinitional, 0.10, 1000, []string{"answer", "definition", "citations", "confidence"}},
		{domain.QueryAnalytical, 0.15, 2000, []string{"answer", "key_points", "citations", "confidence"}},
		{domain.QueryGeneral, 0.10, 1200, []string{"answer", "citations", "confidence"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.queryType), func(t *testing.T) {
			tmpl := TemplateFor(tt.queryType)
			assert.Equal(t, tt.queryType, tmpl.Type)
			assert.Equal(t, tt.temperature, tmpl.Temperature)
			assert.Equal(t, tt.maxTokens, tmpl.MaxTokens)
			assert.Equal(t, tt.required, tmpl.Required)
			assert.NotEmpty(t, tmpl.SystemPrompt)

			var schema struct {
				Type       string                     `json:"type"`
				Properties map[string]json.RawMessage `json:"properties"`
				Required   []string                   `json:"required"`
			}
			require.NoError(t, json.Unmarshal(tmpl.Schema.Schema, &schema))
			assert.Equal(t, "object", schema.Type)
			assert.Equal(t, tt.required, schema.Required)
			assert.Len(t, schema.Properties, len(tt.required))
		})
	}
}

func TestTemplateFor_UnknownType(t *testing.T) {
	assert.Equal(t, domain.QueryGeneral, TemplateFor("poetry").Type)
}

func TestTemplate_Request(t *testing.T) {
	tmpl := TemplateFor(domain.QueryProcedural)
	req := tmpl.Request("How do I reset it?", "Document: Manual\nPage 3\nContent: Hold the button.")

	assert.Equal(t, tmpl.SystemPrompt, req.SystemPrompt)
	assert.Contains(t, req.Prompt, "Question: How do I reset it?")
	assert.Contains(t, req.Prompt, "Hold the button.")
	assert.Equal(t, 0.05, req.Temperature)
	require.NotNil(t, req.Schema)
	assert.Equal(t, "procedural_answer", req.Schema.Name)
}

func TestTemplate_WithPromptStore(t *testing.T) {
	store := &mockPromptStore{prompts: map[string]string{driven.PromptProcedural: "custom procedural prompt"}}

	tmpl := TemplateFor(domain.QueryProcedural).WithPromptStore(store)
	assert.Equal(t, "custom procedural prompt", tmpl.SystemPrompt)

	// the shared template is not modified
	assert.NotEqual(t, "custom procedural prompt", TemplateFor(domain.QueryProcedural).SystemPrompt)

	// missing overrides fall back to the built-in prompt
	general := TemplateFor(domain.QueryGeneral).WithPromptStore(store)
	assert.Equal(t, DefaultPrompts()[driven.PromptGeneral], general.SystemPrompt)
}

func TestPlainRequest(t *testing.T) {
	req := PlainRequest(nil, "q", "ctx")
	assert.Nil(t, req.Schema)
	assert.Equal(t, DefaultPrompts()[driven.PromptPlainAnswer], req.SystemPrompt)

	req = PlainRequest(&mockPromptStore{err: errors.New("disk gone")}, "q", "ctx")
	assert.Equal(t, DefaultPrompts()[driven.PromptPlainAnswer], req.SystemPrompt)
}

func TestDefaultPrompts_ReturnsCopy(t *testing.T) {
	p := DefaultPrompts()
	p[driven.PromptGeneral] = "changed"
	assert.NotEqual(t, "changed", DefaultPrompts()[driven.PromptGeneral])
	assert.Len(t, p, 5)
}
