package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/logger"
)

var (
	askUser       string
	askDocs       []string
	askJSON       bool
	askMaxResults int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your documents",
	Long: `Retrieves the passages most similar to the question and asks the
generation model to answer from them, citing document and page.

The question is classified as procedural, definitional, analytical or
general and answered with a matching response format.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", defaultUser(), "user whose documents to search")
	askCmd.Flags().StringSliceVar(&askDocs, "doc", nil, "restrict to document IDs (repeatable)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().IntVarP(&askMaxResults, "max-results", "n", 0, "passages to retrieve (default from config)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var answer *domain.RAGAnswer
	if answers, err := s.Answers(ctx); err != nil {
		answer = domain.DegradedAnswer(err)
	} else {
		answer = answers.Answer(ctx, domain.AnswerRequest{
			Query:       args[0],
			UserID:      askUser,
			DocumentIDs: askDocs,
			MaxResults:  askMaxResults,
		})
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Println(renderAnswer(answer))
		if logger.IsVerbose() && s.ProviderStats != nil {
			cmd.Println(renderStats(s.ProviderStats()))
		}
	}

	if answer.Metadata.Error != "" {
		return fmt.Errorf("answer degraded: %s", answer.Metadata.Error)
	}
	return nil
}

func renderAnswer(a *domain.RAGAnswer) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Answer"))
	b.WriteString("\n")
	if a.Metadata.Error != "" {
		b.WriteString(answerStyle.Render(errorStyle.Render(a.Text)))
	} else {
		b.WriteString(answerStyle.Render(a.Text))
	}
	b.WriteString("\n\n")

	if len(a.Sources) > 0 {
		b.WriteString(sectionStyle.Render("Sources"))
		b.WriteString("\n")
		for i, src := range a.Sources {
			line := fmt.Sprintf("[%d] %s, page %d", i+1, src.DocumentName, src.PageNumber)
			if src.SectionTitle != "" {
				line += " (" + src.SectionTitle + ")"
			}
			if src.SimilarityScore > 0 {
				line += fmt.Sprintf("  %.2f", src.SimilarityScore)
			}
			b.WriteString(sourceStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	meta := a.Metadata
	summary := fmt.Sprintf("confidence %s", confidenceStyle(a.Confidence).Render(fmt.Sprintf("%.2f", a.Confidence)))
	if meta.QueryType != "" {
		summary += mutedStyle.Render(fmt.Sprintf("  ·  %s", meta.QueryType))
	}
	summary += mutedStyle.Render(fmt.Sprintf("  ·  %d passages  ·  %s", meta.ResultCount, meta.Timings.Total.Round(time.Millisecond)))
	if meta.TokensUsed > 0 {
		summary += mutedStyle.Render(fmt.Sprintf("  ·  %d tokens", meta.TokensUsed))
	}
	b.WriteString(summary)
	return b.String()
}

func renderStats(stats map[string]domain.ProviderStats) string {
	if len(stats) == 0 {
		return ""
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Providers"))
	for _, k := range keys {
		st := stats[k]
		fmt.Fprintf(&b, "\n  %s\n    %d requests, %d errors (%.0f%%), avg %s, $%.4f",
			k, st.Requests, st.Errors, st.ErrorRate*100, st.AverageLatency.Round(time.Millisecond), st.TotalCostUSD)
	}
	return mutedStyle.Render(b.String())
}
