package prompting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"surrounding prose", "Sure! Here you go:\n```json\n{\"a\":{\"b\":2}}\n```\nThanks", `{"a":{"b":2}}`, true},
		{"braces in strings", `{"a":"}{ \"quoted\" }"} trailing {"b":1}`, `{"a":"}{ \"quoted\" }"}`, true},
		{"unbalanced then valid", `{ broken {"ok":true}`, `{"ok":true}`, true},
		{"no object", "just text", "", false},
		{"unterminated", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponse_Procedural(t *testing.T) {
	raw := `Here is the answer:
{
  "answer": "  Submit the form through the HR portal. ",
  "steps": ["Open the portal", "Fill in dates", 3],
  "citations": [
    {"document": " Leave Policy ", "page": 4, "quote": "Requests go through HR"},
    {"document": "Handbook", "page": "p. 12"},
    {"page": 9},
    "not an object"
  ],
  "confidence": 1.7
}`

	got := ParseResponse(raw, TemplateFor(domain.QueryProcedural))

	assert.False(t, got.Fallback)
	assert.Equal(t, "Submit the form through the HR portal.", got.Answer)
	assert.Equal(t, []string{"Open the portal", "Fill in dates", "3"}, got.Steps)
	assert.Equal(t, []Citation{
		{Document: "Leave Policy", Page: 4, Quote: "Requests go through HR"},
		{Document: "Handbook", Page: 12},
	}, got.Citations)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestParseResponse_ConfidenceClamping(t *testing.T) {
	tmpl := TemplateFor(domain.QueryGeneral)

	low := ParseResponse(`{"answer":"x","citations":[],"confidence":-0.4}`, tmpl)
	assert.Equal(t, 0.0, low.Confidence)

	str := ParseResponse(`{"answer":"x","citations":[],"confidence":"0.75"}`, tmpl)
	assert.Equal(t, 0.75, str.Confidence)
}

func TestParseResponse_Fallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		tmpl Template
	}{
		{"no json", "I am not sure.", TemplateFor(domain.QueryGeneral)},
		{"invalid json", `{"answer": "x", }`, TemplateFor(domain.QueryGeneral)},
		{"missing steps", `{"answer":"x","citations":[],"confidence":0.9}`, TemplateFor(domain.QueryProcedural)},
		{"null field", `{"answer":"x","citations":null,"confidence":0.9}`, TemplateFor(domain.QueryGeneral)},
		{"empty answer", `{"answer":"  ","citations":[],"confidence":0.9}`, TemplateFor(domain.QueryGeneral)},
		{"bad confidence", `{"answer":"x","citations":[],"confidence":"high"}`, TemplateFor(domain.QueryGeneral)},
		{"citations not array", `{"answer":"x","citations":"doc","confidence":0.5}`, TemplateFor(domain.QueryGeneral)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.raw, tt.tmpl)
			assert.True(t, got.Fallback)
			assert.Equal(t, FallbackAnswer(), got)
			assert.Equal(t, 0.1, got.Confidence)
		})
	}
}

func TestStructuredAnswer_Text(t *testing.T) {
	a := StructuredAnswer{
		Answer:    "Reset the device.",
		Steps:     []string{"Unplug it", "Wait ten seconds"},
		KeyPoints: []string{"Safe to repeat"},
	}

	assert.Equal(t, "Reset the device.\n\n1. Unplug it\n2. Wait ten seconds\n\n- Safe to repeat", a.Text())

	d := StructuredAnswer{Answer: "A lien is a claim.", Definition: "A legal claim on property."}
	assert.Equal(t, "A lien is a claim.\n\nDefinition: A legal claim on property.", d.Text())
}
