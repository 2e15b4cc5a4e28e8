package prompting

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// Template pairs a system prompt with the response shape and sampling
// settings for one query type.
type Template struct {
	Type         domain.QueryType
	PromptName   string
	SystemPrompt string
	Schema       domain.ResponseSchema
	Required     []string
	Temperature  float64
	MaxTokens    int
}

// Response fields.
const (
	FieldAnswer     = "answer"
	FieldSteps      = "steps"
	FieldDefinition = "definition"
	FieldKeyPoints  = "key_points"
	FieldCitations  = "citations"
	FieldConfidence = "confidence"
)

const citationsSchema = `{
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "document": {"type": "string"},
          "page": {"type": "integer"},
          "quote": {"type": "string"}
        },
        "required": ["document", "page"]
      }
    }`

func objectSchema(fields map[string]string, required []string) json.RawMessage {
	var props []string
	for _, name := range required {
		props = append(props, fmt.Sprintf("%q: %s", name, fields[name]))
	}
	req, _ := json.Marshal(required)
	return json.RawMessage(fmt.Sprintf(`{"type": "object", "properties": {%s}, "required": %s}`,
		strings.Join(props, ", "), req))
}

var fieldSchemas = map[string]string{
	FieldAnswer:     `{"type": "string"}`,
	FieldSteps:      `{"type": "array", "items": {"type": "string"}}`,
	FieldDefinition: `{"type": "string"}`,
	FieldKeyPoints:  `{"type": "array", "items": {"type": "string"}}`,
	FieldCitations:  citationsSchema,
	FieldConfidence: `{"type": "number", "minimum": 0, "maximum": 1}`,
}

const citationRules = `Answer only from the provided context. Cite every claim with the document name and page number it came from.
If the context does not contain the answer, say so plainly and set confidence below 0.3.
Respond with a single JSON object and nothing else.`

// defaultPrompts are the built-in system prompts keyed by prompt name.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptProcedural: `You are a documentation assistant answering how-to questions.
Give the answer as an ordered list of concrete steps in the order they must be performed, keeping every step the source lists.
` + citationRules,

	driven.PromptDefinitional: `You are a documentation assistant answering questions about what something is.
Give a precise one or two sentence definition taken from the source, then any essential context.
` + citationRules,

	driven.PromptAnalytical: `You are a documentation assistant answering comparison and reasoning questions.
Summarise the relevant points from each source, note where they agree or differ, and draw a conclusion supported by the context.
` + citationRules,

	driven.PromptGeneral: `You are a documentation assistant answering questions about the user's documents.
Give a direct, complete answer.
` + citationRules,

	driven.PromptPlainAnswer: `You are a documentation assistant answering questions about the user's documents.
Answer only from the provided context and cite sources inline as [Document, Page N].
If the context does not contain the answer, say that no relevant information was found.`,
}

// DefaultPrompts returns a copy of the built-in system prompts.
func DefaultPrompts() map[string]string {
	out := make(map[string]string, len(defaultPrompts))
	for k, v := range defaultPrompts {
		out[k] = v
	}
	return out
}

func newTemplate(t domain.QueryType, temperature float64, maxTokens int, required ...string) Template {
	return Template{
		Type:         t,
		PromptName:   string(t),
		SystemPrompt: defaultPrompts[string(t)],
		Schema: domain.ResponseSchema{
			Name:   string(t) + "_answer",
			Schema: objectSchema(fieldSchemas, required),
		},
		Required:    required,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

var templates = map[domain.QueryType]Template{
	domain.QueryProcedural: newTemplate(domain.QueryProcedural, 0.05, 1500,
		FieldAnswer, FieldSteps, FieldCitations, FieldConfidence),
	domain.QueryDefinitional: newTemplate(domain.QueryDefinitional, 0.10, 1000,
		FieldAnswer, FieldDefinition, FieldCitations, FieldConfidence),
	domain.QueryAnalytical: newTemplate(domain.QueryAnalytical, 0.15, 2000,
		FieldAnswer, FieldKeyPoints, FieldCitations, FieldConfidence),
	domain.QueryGeneral: newTemplate(domain.QueryGeneral, 0.10, 1200,
		FieldAnswer, FieldCitations, FieldConfidence),
}

// PlainTemperature and PlainMaxTokens apply to unstructured completions.
const (
	PlainTemperature = 0.1
	PlainMaxTokens   = 1200
)

// TemplateFor returns the template for a query type. Unknown types get the
// general template.
func TemplateFor(t domain.QueryType) Template {
	if tmpl, ok := templates[t]; ok {
		return tmpl
	}
	return templates[domain.QueryGeneral]
}

// WithPromptStore returns a copy of the template whose system prompt is
// loaded from store when it has an override.
func (t Template) WithPromptStore(store driven.PromptStore) Template {
	t.SystemPrompt = loadPrompt(store, t.PromptName)
	return t
}

// Request builds the schema-constrained generation request for a question.
func (t Template) Request(query, contextText string) domain.GenerationRequest {
	schema := t.Schema
	return domain.GenerationRequest{
		SystemPrompt: t.SystemPrompt,
		Prompt:       UserPrompt(query, contextText),
		Temperature:  t.Temperature,
		MaxTokens:    t.MaxTokens,
		Schema:       &schema,
	}
}

// PlainRequest builds an unstructured completion request that still
// requires citations. store may be nil.
func PlainRequest(store driven.PromptStore, query, contextText string) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemPrompt: loadPrompt(store, driven.PromptPlainAnswer),
		Prompt:       UserPrompt(query, contextText),
		Temperature:  PlainTemperature,
		MaxTokens:    PlainMaxTokens,
	}
}

// UserPrompt formats the question and retrieved context for the model.
func UserPrompt(query, contextText string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, query)
}

func loadPrompt(store driven.PromptStore, name string) string {
	if store == nil {
		return defaultPrompts[name]
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		if err != nil {
			logger.Debug("prompt %q: using built-in default: %v", name, err)
		}
		return defaultPrompts[name]
	}
	return prompt
}
