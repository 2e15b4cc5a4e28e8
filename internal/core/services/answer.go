package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
	"github.com/custodia-labs/pagewise/internal/logger"
	"github.com/custodia-labs/pagewise/internal/prompting"
	"github.com/custodia-labs/pagewise/internal/tokens"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

// Confidence blend constants.
const (
	// MinConfidence is the floor for every non-degraded answer.
	MinConfidence = 0.1

	similarityWeight  = 0.5
	resultCountWeight = 0.3
	lengthWeight      = 0.2

	similarityTopN     = 3
	fullResultCount    = 5
	fullAnswerLength   = 100
	defaultExcerptLen  = 240
	contextBlockFormat = "Document: %s\nPage %d\nContent: %s"
)

// NoResultsText is returned when search finds nothing relevant.
const NoResultsText = "No relevant information was found in your documents for this question."

// AnswerService answers questions by retrieving chunks and asking the
// generation provider to answer from them.
type AnswerService struct {
	embedder  driven.Embedder
	generator driven.Generator
	search    driven.SearchOperation
	sizer     tokens.Sizer
	settings  domain.RetrievalSettings
	prompts   driven.PromptStore
}

// NewAnswerService creates a new answer service. sizer measures the context
// budget; nil uses the character estimate.
func NewAnswerService(
	embedder driven.Embedder,
	generator driven.Generator,
	search driven.SearchOperation,
	sizer tokens.Sizer,
	settings domain.RetrievalSettings,
) *AnswerService {
	if settings.TopK <= 0 {
		settings.TopK = domain.DefaultRetrievalSettings("").TopK
	}
	if settings.MaxContextTokens <= 0 {
		settings.MaxContextTokens = domain.DefaultMaxContextTokens(generator.ModelInfo().Provider)
	}
	if settings.MaxSources <= 0 {
		settings.MaxSources = domain.DefaultRetrievalSettings("").MaxSources
	}
	return &AnswerService{
		embedder:  embedder,
		generator: generator,
		search:    search,
		sizer:     sizer,
		settings:  settings,
	}
}

// SetPromptStore sets the store system prompts are loaded from.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Answer runs the retrieval and generation steps. It never fails: errors
// produce a degraded answer with zero confidence.
func (s *AnswerService) Answer(ctx context.Context, req domain.AnswerRequest) *domain.RAGAnswer {
	logger.Section("Answer")
	start := time.Now()
	var timings domain.AnswerTimings

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return degraded(fmt.Errorf("%w: query is empty", domain.ErrInvalidInput), timings, start)
	}

	// 1. Embed the query
	t := time.Now()
	embedding, err := s.embedder.Embed(ctx, query)
	timings.Embedding = time.Since(t)
	if err != nil {
		return degraded(fmt.Errorf("embed query: %w", err), timings, start)
	}

	// 2. Search
	topK := s.settings.TopK
	if req.MaxResults > 0 {
		topK = req.MaxResults
	}
	t = time.Now()
	results, err := s.search.Search(ctx, domain.SearchQuery{
		Embedding:           embedding.Vector,
		UserID:              req.UserID,
		SimilarityThreshold: s.settings.SimilarityThreshold,
		TopK:                topK,
		DocumentIDs:         req.DocumentIDs,
	})
	timings.Search = time.Since(t)
	if err != nil {
		return degraded(fmt.Errorf("search: %w", err), timings, start)
	}
	logger.Debug("Search returned %d results (threshold %.2f, top %d)", len(results), s.settings.SimilarityThreshold, topK)

	if len(results) == 0 {
		timings.Total = time.Since(start)
		return &domain.RAGAnswer{
			Text:       NoResultsText,
			Sources:    []domain.SourceReference{},
			Confidence: MinConfidence,
			Metadata:   domain.AnswerMetadata{Timings: timings},
		}
	}

	// 3. Assemble context
	contextText, used := s.assembleContext(results)
	logger.Debug("Context uses %d of %d results", len(used), len(results))

	// 4. Generate
	meta := domain.AnswerMetadata{ResultCount: len(used)}
	var (
		text    string
		sources []domain.SourceReference
	)

	t = time.Now()
	if s.settings.UseClassification {
		classification := prompting.Classify(query)
		meta.QueryType = classification.Type
		logger.Debug("Classified as %s (%.2f)", classification.Type, classification.Confidence)

		tmpl := prompting.TemplateFor(classification.Type).WithPromptStore(s.prompts)
		result, err := s.generator.Generate(ctx, tmpl.Request(query, contextText))
		timings.Generation = time.Since(t)
		if err != nil {
			return degraded(fmt.Errorf("generate: %w", err), timings, start)
		}
		meta.Model, meta.TokensUsed = result.Model, result.TotalTokens()

		structured := prompting.ParseResponse(result.Text, tmpl)
		text = structured.Text()
		meta.ModelConfidence = structured.Confidence
		if !structured.Fallback && len(structured.Citations) > 0 {
			sources = citeSources(structured.Citations, used)
		}
	} else {
		result, err := s.generator.Generate(ctx, prompting.PlainRequest(s.prompts, query, contextText))
		timings.Generation = time.Since(t)
		if err != nil {
			return degraded(fmt.Errorf("generate: %w", err), timings, start)
		}
		meta.Model, meta.TokensUsed = result.Model, result.TotalTokens()
		text = strings.TrimSpace(result.Text)
	}

	// 5. Sources and confidence
	if len(sources) == 0 {
		sources = topSources(used, s.settings.MaxSources)
	}

	timings.Total = time.Since(start)
	meta.Timings = timings
	return &domain.RAGAnswer{
		Text:       text,
		Sources:    sources,
		Confidence: BlendConfidence(results, utf8.RuneCountInString(text)),
		Metadata:   meta,
	}
}

// assembleContext concatenates result blocks in order until the token
// budget would be exceeded. The first block is always included.
func (s *AnswerService) assembleContext(results []domain.SearchResult) (string, []domain.SearchResult) {
	var (
		blocks []string
		used   int
	)
	for i, r := range results {
		block := fmt.Sprintf(contextBlockFormat, r.DocumentName, r.PageNumber, r.Text)
		size := s.count(block)
		if i > 0 && used+size > s.settings.MaxContextTokens {
			break
		}
		blocks = append(blocks, block)
		used += size
	}
	return strings.Join(blocks, "\n\n"), results[:len(blocks)]
}

func (s *AnswerService) count(text string) int {
	if s.sizer == nil {
		return tokens.Estimate(text)
	}
	return s.sizer.Count(text)
}

// BlendConfidence scores an answer from its retrieval quality and length:
// 0.5*avg(top-3 similarity) + 0.3*min(n/5, 1) + 0.2*min(len/100, 1),
// clamped to [0.1, 1].
func BlendConfidence(results []domain.SearchResult, answerLength int) float64 {
	if len(results) == 0 {
		return MinConfidence
	}

	n := min(len(results), similarityTopN)
	var sum float64
	for _, r := range results[:n] {
		sum += r.SimilarityScore
	}
	avg := sum / float64(n)

	score := similarityWeight*avg +
		resultCountWeight*math.Min(float64(len(results))/fullResultCount, 1) +
		lengthWeight*math.Min(float64(answerLength)/fullAnswerLength, 1)
	return math.Max(MinConfidence, math.Min(1, score))
}

// citeSources maps model citations back to search results by document name
// and page. Unmatched citations are kept with zero similarity.
func citeSources(citations []prompting.Citation, results []domain.SearchResult) []domain.SourceReference {
	seen := make(map[string]bool, len(citations))
	sources := make([]domain.SourceReference, 0, len(citations))
	for _, c := range citations {
		key := strings.ToLower(strings.TrimSpace(c.Document)) + "#" + fmt.Sprint(c.Page)
		if seen[key] {
			continue
		}
		seen[key] = true

		ref := domain.SourceReference{
			DocumentName: c.Document,
			PageNumber:   c.Page,
			Excerpt:      c.Quote,
		}
		for _, r := range results {
			if r.PageNumber == c.Page && strings.EqualFold(strings.TrimSpace(r.DocumentName), strings.TrimSpace(c.Document)) {
				ref.DocumentID = r.DocumentID
				ref.DocumentName = r.DocumentName
				ref.SectionTitle = r.SectionTitle
				ref.SimilarityScore = r.SimilarityScore
				if ref.Excerpt == "" {
					ref.Excerpt = excerpt(r.Text)
				}
				break
			}
		}
		sources = append(sources, ref)
	}
	return sources
}

// topSources turns the best n results into source references.
func topSources(results []domain.SearchResult, n int) []domain.SourceReference {
	if len(results) < n {
		n = len(results)
	}
	sources := make([]domain.SourceReference, 0, n)
	for _, r := range results[:n] {
		sources = append(sources, domain.SourceReference{
			DocumentID:      r.DocumentID,
			DocumentName:    r.DocumentName,
			PageNumber:      r.PageNumber,
			SectionTitle:    r.SectionTitle,
			Excerpt:         excerpt(r.Text),
			SimilarityScore: r.SimilarityScore,
		})
	}
	return sources
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= defaultExcerptLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:defaultExcerptLen]) + "..."
}

// degraded is the answer returned when any step fails.
func degraded(err error, timings domain.AnswerTimings, start time.Time) *domain.RAGAnswer {
	logger.Warn("answer failed: %v", err)
	timings.Total = time.Since(start)
	answer := domain.DegradedAnswer(err)
	answer.Metadata.Timings = timings
	return answer
}
