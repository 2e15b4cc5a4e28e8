package prompting

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/pagewise/internal/logger"
)

// FallbackConfidence is the confidence of the substitute answer used when
// model output cannot be parsed.
const FallbackConfidence = 0.1

// FallbackText is the answer text used when model output cannot be parsed.
const FallbackText = "I could not produce a reliable answer from the available documents. " +
	"Please rephrase the question or check the cited sources directly."

// Citation is one source reference reported by the model.
type Citation struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Quote    string `json:"quote,omitempty"`
}

// StructuredAnswer is validated model output.
type StructuredAnswer struct {
	Answer     string     `json:"answer"`
	Steps      []string   `json:"steps,omitempty"`
	Definition string     `json:"definition,omitempty"`
	KeyPoints  []string   `json:"key_points,omitempty"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`

	// Fallback is true when the model output was replaced.
	Fallback bool `json:"-"`
}

// FallbackAnswer returns the fixed low-confidence substitute answer.
func FallbackAnswer() StructuredAnswer {
	return StructuredAnswer{
		Answer:     FallbackText,
		Citations:  []Citation{},
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
}

// Text renders the answer with its steps or key points as plain text.
func (a StructuredAnswer) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Answer))
	if a.Definition != "" && !strings.Contains(a.Answer, a.Definition) {
		b.WriteString("\n\nDefinition: ")
		b.WriteString(a.Definition)
	}
	if len(a.Steps) > 0 {
		b.WriteString("\n")
		for i, s := range a.Steps {
			fmt.Fprintf(&b, "\n%d. %s", i+1, s)
		}
	}
	if len(a.KeyPoints) > 0 {
		b.WriteString("\n")
		for _, p := range a.KeyPoints {
			fmt.Fprintf(&b, "\n- %s", p)
		}
	}
	return b.String()
}

var errNoJSON = errors.New("no JSON object in response")

// ParseResponse validates raw model output against a template. Any failure
// yields FallbackAnswer.
func ParseResponse(raw string, t Template) StructuredAnswer {
	answer, err := parse(raw, t)
	if err != nil {
		logger.Warn("structured answer rejected (%s): %v", t.Type, err)
		return FallbackAnswer()
	}
	return answer
}

func parse(raw string, t Template) (StructuredAnswer, error) {
	// 1. EXTRACT
	span, ok := ExtractJSON(raw)
	if !ok {
		return StructuredAnswer{}, errNoJSON
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return StructuredAnswer{}, fmt.Errorf("decode: %w", err)
	}

	// 2. REQUIRED FIELDS
	for _, name := range t.Required {
		if v, ok := fields[name]; !ok || v == nil {
			return StructuredAnswer{}, fmt.Errorf("missing field %q", name)
		}
	}

	// 3. COERCE
	var out StructuredAnswer
	var err error
	if out.Answer, err = toString(fields[FieldAnswer]); err != nil || out.Answer == "" {
		return StructuredAnswer{}, fmt.Errorf("field %q: empty or invalid", FieldAnswer)
	}
	if v, ok := fields[FieldDefinition]; ok && v != nil {
		if out.Definition, err = toString(v); err != nil {
			return StructuredAnswer{}, fmt.Errorf("field %q: %w", FieldDefinition, err)
		}
	}
	if out.Steps, err = toStrings(fields[FieldSteps]); err != nil {
		return StructuredAnswer{}, fmt.Errorf("field %q: %w", FieldSteps, err)
	}
	if out.KeyPoints, err = toStrings(fields[FieldKeyPoints]); err != nil {
		return StructuredAnswer{}, fmt.Errorf("field %q: %w", FieldKeyPoints, err)
	}
	if out.Citations, err = toCitations(fields[FieldCitations]); err != nil {
		return StructuredAnswer{}, fmt.Errorf("field %q: %w", FieldCitations, err)
	}

	confidence, err := toFloat(fields[FieldConfidence])
	if err != nil {
		return StructuredAnswer{}, fmt.Errorf("field %q: %w", FieldConfidence, err)
	}
	out.Confidence = math.Max(0, math.Min(1, confidence))

	return out, nil
}

// ExtractJSON returns the first balanced {...} span in raw. Braces inside
// JSON strings are ignored.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	for start >= 0 {
		if end, ok := matchBrace(raw, start); ok {
			return raw[start:end], true
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index just past the brace closing raw[start].
func matchBrace(raw string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func toStrings(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		if s, err := toString(v); err == nil && s != "" {
			return []string{s}, nil
		}
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := toString(item)
		if err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// toPage accepts a page as a number or a numeric string such as "12" or
// "p. 12". Unparseable pages become 0.
func toPage(v any) int {
	switch x := v.(type) {
	case float64:
		if x < 0 {
			return 0
		}
		return int(x)
	case string:
		digits := strings.TrimFunc(strings.TrimSpace(x), func(r rune) bool { return r < '0' || r > '9' })
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func toCitations(v any) ([]Citation, error) {
	if v == nil {
		return []Citation{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]Citation, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc, _ := toString(obj["document"])
		quote, _ := toString(obj["quote"])
		if doc == "" {
			continue
		}
		out = append(out, Citation{Document: doc, Page: toPage(obj["page"]), Quote: quote})
	}
	return out, nil
}
