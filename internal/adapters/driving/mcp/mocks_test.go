package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.RAGAnswer
	last   domain.AnswerRequest
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest) *domain.RAGAnswer {
	m.last = req
	return m.answer
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	docs      map[string]*domain.DocumentRecord
	err       error
	submitted []domain.SubmitRequest
}

func (m *mockIngestionService) Submit(_ context.Context, req domain.SubmitRequest) (*domain.SubmitAck, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, req)
	return &domain.SubmitAck{
		DocumentID: "doc-new",
		State:      domain.DocumentProcessingState{Status: domain.StatusPending},
	}, nil
}

func (m *mockIngestionService) Status(_ context.Context, id string) (*domain.DocumentRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if doc, ok := m.docs[id]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
}

var (
	_ driving.AnswerService    = (*mockAnswerService)(nil)
	_ driving.IngestionService = (*mockIngestionService)(nil)
)
