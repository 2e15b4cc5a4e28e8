package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure StatusStore implements the interface.
var _ driven.DocumentStatusStore = (*StatusStore)(nil)

// StatusStore is an in-memory implementation of driven.DocumentStatusStore.
type StatusStore struct {
	mu        sync.RWMutex
	documents map[string]domain.DocumentRecord
}

// NewStatusStore creates a new in-memory status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		documents: make(map[string]domain.DocumentRecord),
	}
}

// Create stores a new document record.
func (s *StatusStore) Create(_ context.Context, doc *domain.DocumentRecord) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("%w: document %s", domain.ErrAlreadyExists, doc.ID)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if doc.State.Status == "" {
		doc.State = domain.PendingState()
	}
	s.documents[doc.ID] = *doc
	return nil
}

// Get retrieves a document record by ID.
func (s *StatusStore) Get(_ context.Context, id string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// UpdateState replaces a document's state unless it is already terminal.
func (s *StatusStore) UpdateState(_ context.Context, id string, state domain.DocumentProcessingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.State.IsTerminal() {
		return fmt.Errorf("%w: document %s is already terminal", domain.ErrInvalidTransition, id)
	}
	doc.State = state
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

// ListByStatus returns documents in the given status, oldest first.
func (s *StatusStore) ListByStatus(_ context.Context, status domain.ProcessingStatus) ([]*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*domain.DocumentRecord
	for _, doc := range s.documents {
		if doc.State.Status == status {
			d := doc
			docs = append(docs, &d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}
