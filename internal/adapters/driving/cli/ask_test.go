package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
)

func sampleAnswer() *domain.RAGAnswer {
	return &domain.RAGAnswer{
		Text:       "Hold the reset button for ten seconds.",
		Confidence: 0.82,
		Sources: []domain.SourceReference{
			{DocumentID: "doc-1", DocumentName: "router.pdf", PageNumber: 4, SectionTitle: "Resetting", SimilarityScore: 0.91},
			{DocumentID: "doc-1", DocumentName: "router.pdf", PageNumber: 5},
		},
		Metadata: domain.AnswerMetadata{
			QueryType:   domain.QueryProcedural,
			ResultCount: 5,
			TokensUsed:  410,
			Timings:     domain.AnswerTimings{Total: 1200 * time.Millisecond},
		},
	}
}

func TestAskCmd_Flags(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)

	maxResults := askCmd.Flags().Lookup("max-results")
	require.NotNil(t, maxResults)
	assert.Equal(t, "n", maxResults.Shorthand)
	assert.Equal(t, "0", maxResults.DefValue)

	assert.NotNil(t, askCmd.Flags().Lookup("doc"))
	assert.NotNil(t, askCmd.Flags().Lookup("json"))
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_RendersAnswer(t *testing.T) {
	ts := setupTestServices(t)
	ts.answers.answer = sampleAnswer()

	out, err := execute(t, "ask", "--doc", "doc-1", "-n", "3", "How do I reset the router?")

	require.NoError(t, err)
	assert.Contains(t, out, "Hold the reset button for ten seconds.")
	assert.Contains(t, out, "[1] router.pdf, page 4 (Resetting)  0.91")
	assert.Contains(t, out, "[2] router.pdf, page 5")
	assert.Contains(t, out, "confidence")
	assert.Contains(t, out, "0.82")
	assert.Contains(t, out, "procedural")
	assert.Contains(t, out, "410 tokens")

	assert.Equal(t, "How do I reset the router?", ts.answers.last.Query)
	assert.Equal(t, "alice", ts.answers.last.UserID)
	assert.Equal(t, []string{"doc-1"}, ts.answers.last.DocumentIDs)
	assert.Equal(t, 3, ts.answers.last.MaxResults)
}

func TestAskCmd_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.answers.answer = sampleAnswer()

	out, err := execute(t, "ask", "--json", "How do I reset the router?")

	require.NoError(t, err)
	var got domain.RAGAnswer
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Hold the reset button for ten seconds.", got.Text)
	assert.Len(t, got.Sources, 2)
	assert.Equal(t, domain.QueryProcedural, got.Metadata.QueryType)
}

func TestAskCmd_DegradedAnswerFails(t *testing.T) {
	ts := setupTestServices(t)
	ts.answers.answer = &domain.RAGAnswer{
		Text:     "The question could not be answered: provider unavailable",
		Sources:  []domain.SourceReference{},
		Metadata: domain.AnswerMetadata{Error: "provider unavailable"},
	}

	out, err := execute(t, "ask", "What is the warranty period?")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer degraded: provider unavailable")
	assert.Contains(t, out, "could not be answered")
	assert.NotContains(t, out, "Sources")
}

func TestAskCmd_ProvidersUnreachable(t *testing.T) {
	ts := setupTestServices(t)
	ts.svc.Answers = func(context.Context) (driving.AnswerService, error) {
		return nil, errors.New("embedding provider ollama: connection refused")
	}

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "ask", "How do I reset the router?")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "answer degraded: embedding provider ollama: connection refused")
		assert.Contains(t, out, "The question could not be answered: embedding provider ollama: connection refused")
		assert.Contains(t, out, "confidence")
		assert.Contains(t, out, "0.00")
		assert.NotContains(t, out, "Sources")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "ask", "--json", "How do I reset the router?")
		require.Error(t, err)

		var got domain.RAGAnswer
		require.NoError(t, json.Unmarshal([]byte(out[:strings.LastIndex(out, "}")+1]), &got))
		assert.Zero(t, got.Confidence)
		assert.Empty(t, got.Sources)
		assert.Equal(t, "embedding provider ollama: connection refused", got.Metadata.Error)
	})
}

func TestRenderStats(t *testing.T) {
	assert.Empty(t, renderStats(nil))

	out := renderStats(map[string]domain.ProviderStats{
		"openai/gpt-4o-mini": {Requests: 10, Errors: 1, ErrorRate: 0.1, AverageLatency: 250 * time.Millisecond},
		"ollama/nomic":       {Requests: 4},
	})

	assert.Contains(t, out, "Providers")
	assert.Contains(t, out, "10 requests, 1 errors (10%), avg 250ms")
	assert.Less(t, strings.Index(out, "ollama/nomic"), strings.Index(out, "openai/gpt-4o-mini"))
}

