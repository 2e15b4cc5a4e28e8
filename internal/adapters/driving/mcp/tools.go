package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query       string   `json:"query" jsonschema:"the question to answer"`
	UserID      string   `json:"user_id" jsonschema:"the user whose documents are searched"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these documents"`
	MaxResults  int      `json:"max_results,omitempty" jsonschema:"number of passages to retrieve"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Sources    []SourceOutput `json:"sources"`
	QueryType  string         `json:"query_type,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// SourceOutput is one cited passage.
type SourceOutput struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
	Similarity   float64 `json:"similarity"`
	Excerpt      string  `json:"excerpt,omitempty"`
}

// StatusInput is the input schema for the document_status tool.
type StatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to report on"`
}

// StatusOutput is the processing state of a document.
type StatusOutput struct {
	DocumentID   string    `json:"document_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TotalPages   int       `json:"total_pages"`
	TotalChunks  int       `json:"total_chunks"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	UserID      string `json:"user_id" jsonschema:"the owner of the document"`
	StoragePath string `json:"storage_path" jsonschema:"local path or s3:// URI of the document"`
	Name        string `json:"name,omitempty" jsonschema:"display name used in citations"`
}

// IngestOutput acknowledges a queued document.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the user's ingested documents with page citations",
	}, s.handleAsk)

	if s.ports.Ingestion == nil {
		return
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report the processing state of an ingested document",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Queue a document for ingestion",
	}, s.handleIngest)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer := s.ports.Answer.Answer(ctx, domain.AnswerRequest{
		Query:       input.Query,
		UserID:      input.UserID,
		DocumentIDs: input.DocumentIDs,
		MaxResults:  input.MaxResults,
	})

	output := AskOutput{
		Text:       answer.Text,
		Confidence: answer.Confidence,
		Sources:    make([]SourceOutput, len(answer.Sources)),
		QueryType:  string(answer.Metadata.QueryType),
		Error:      answer.Metadata.Error,
	}
	for i, src := range answer.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID:   src.DocumentID,
			DocumentName: src.DocumentName,
			PageNumber:   src.PageNumber,
			Similarity:   src.SimilarityScore,
			Excerpt:      src.Excerpt,
		}
	}

	// Degraded answers are reported as tool errors so the assistant does
	// not present them as fact.
	if answer.Metadata.Error != "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: answer.Text}},
		}, output, nil
	}
	return nil, output, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, StatusOutput{}, errIngestionUnavailable
	}

	doc, err := s.ports.Ingestion.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("document status: %w", err)
	}
	return nil, statusOutput(doc), nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, IngestOutput{}, errIngestionUnavailable
	}

	ack, err := s.ports.Ingestion.Submit(ctx, domain.SubmitRequest{
		UserID:      input.UserID,
		Name:        input.Name,
		StoragePath: input.StoragePath,
	})
	if err != nil {
		return nil, IngestOutput{}, fmt.Errorf("submitting document: %w", err)
	}
	return nil, IngestOutput{DocumentID: ack.DocumentID, Status: string(ack.State.Status)}, nil
}

func statusOutput(doc *domain.DocumentRecord) StatusOutput {
	return StatusOutput{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		Status:       string(doc.State.Status),
		Stage:        string(doc.State.Stage),
		ErrorMessage: doc.State.ErrorMessage,
		TotalPages:   doc.State.TotalPages,
		TotalChunks:  doc.State.TotalChunks,
		UpdatedAt:    doc.UpdatedAt,
	}
}
