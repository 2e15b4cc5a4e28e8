package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService records submitted documents and hands them to the queue.
// Processing happens elsewhere; Submit never waits for it.
type IngestionService struct {
	statuses driven.DocumentStatusStore
	queue    driven.IngestionQueue
	now      func() time.Time
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(statuses driven.DocumentStatusStore, queue driven.IngestionQueue) *IngestionService {
	return &IngestionService{
		statuses: statuses,
		queue:    queue,
		now:      time.Now,
	}
}

// Submit creates a pending record and enqueues the document.
func (s *IngestionService) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitAck, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.StoragePath = strings.TrimSpace(req.StoragePath)
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if req.StoragePath == "" {
		return nil, fmt.Errorf("%w: storage path is required", domain.ErrInvalidInput)
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.StoragePath)
	}

	now := s.now()
	doc := &domain.DocumentRecord{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Name:        req.Name,
		StoragePath: req.StoragePath,
		State:       domain.PendingState(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.statuses.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	job := domain.IngestionJob{
		DocumentID:  doc.ID,
		UserID:      doc.UserID,
		Name:        doc.Name,
		StoragePath: doc.StoragePath,
		EnqueuedAt:  now,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The record would otherwise sit in pending forever.
		failed := domain.DocumentProcessingState{
			Status:       domain.StatusFailed,
			Stage:        domain.StageDownloading.Failed(),
			ErrorMessage: "enqueue failed: " + err.Error(),
		}
		if uerr := s.statuses.UpdateState(context.WithoutCancel(ctx), doc.ID, failed); uerr != nil {
			logger.Warn("document %s: recording enqueue failure: %v", doc.ID, uerr)
		}
		return nil, fmt.Errorf("enqueue document %s: %w", doc.ID, err)
	}

	logger.Info("Queued document %s (%s) for user %s", doc.ID, doc.Name, doc.UserID)
	return &domain.SubmitAck{DocumentID: doc.ID, State: doc.State}, nil
}

// Status returns the document and its current processing state.
func (s *IngestionService) Status(ctx context.Context, documentID string) (*domain.DocumentRecord, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	return s.statuses.Get(ctx, documentID)
}
