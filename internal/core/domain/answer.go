package domain

import "time"

// QueryType is the response archetype a question is classified into.
type QueryType string

// Query types.
const (
	QueryProcedural   QueryType = "procedural"
	QueryDefinitional QueryType = "definitional"
	QueryAnalytical   QueryType = "analytical"
	QueryGeneral      QueryType = "general"
)

// QueryClassification is the result of classifying a question.
type QueryClassification struct {
	Type            QueryType
	Confidence      float64
	MatchedPatterns []string
}

// AnswerRequest is a question to answer from a user's documents.
type AnswerRequest struct {
	Query  string
	UserID string

	// DocumentIDs optionally restricts retrieval to specific documents.
	DocumentIDs []string

	// MaxResults overrides the configured top-k when positive.
	MaxResults int
}

// SourceReference points at the material backing an answer.
type SourceReference struct {
	DocumentID      string  `json:"document_id"`
	DocumentName    string  `json:"document_name"`
	PageNumber      int     `json:"page_number"`
	SectionTitle    string  `json:"section_title,omitempty"`
	Excerpt         string  `json:"excerpt,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
}

// AnswerTimings records how long each orchestration step took.
type AnswerTimings struct {
	Embedding  time.Duration `json:"embedding"`
	Search     time.Duration `json:"search"`
	Generation time.Duration `json:"generation"`
	Total      time.Duration `json:"total"`
}

// AnswerMetadata carries diagnostics alongside an answer.
type AnswerMetadata struct {
	Timings    AnswerTimings `json:"timings"`
	TokensUsed int           `json:"tokens_used"`
	QueryType  QueryType     `json:"query_type,omitempty"`
	Model      string        `json:"model,omitempty"`

	// ModelConfidence is the confidence the model reported in structured output.
	ModelConfidence float64 `json:"model_confidence,omitempty"`

	// ResultCount is the number of search results used as context.
	ResultCount int `json:"result_count"`

	// Error is set on degraded answers.
	Error string `json:"error,omitempty"`
}

// RAGAnswer is a generated answer with its sources.
type RAGAnswer struct {
	Text       string            `json:"text"`
	Sources    []SourceReference `json:"sources"`
	Confidence float64           `json:"confidence"`
	Metadata   AnswerMetadata    `json:"metadata"`
}

// DegradedAnswer is the answer returned when a question could not be
// answered because of err.
func DegradedAnswer(err error) *RAGAnswer {
	return &RAGAnswer{
		Text:       "The question could not be answered: " + err.Error(),
		Sources:    []SourceReference{},
		Confidence: 0,
		Metadata:   AnswerMetadata{Error: err.Error()},
	}
}
