package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.DocumentStatusStore = (*statusStore)(nil)

type statusStore struct {
	store *Store
}

const documentColumns = `id, user_id, name, storage_path, status, stage, error_message,
	total_pages, total_chunks, created_at, updated_at`

func (s *statusStore) Create(ctx context.Context, doc *domain.DocumentRecord) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if doc.State.Status == "" {
		doc.State = domain.PendingState()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		doc.ID, doc.UserID, doc.Name, doc.StoragePath,
		string(doc.State.Status), string(doc.State.Stage), doc.State.ErrorMessage,
		doc.State.TotalPages, doc.State.TotalChunks, doc.CreatedAt, doc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: document %s", domain.ErrAlreadyExists, doc.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (s *statusStore) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// UpdateState is a single conditional UPDATE, so terminal rows are never reopened.
func (s *statusStore) UpdateState(ctx context.Context, id string, state domain.DocumentProcessingState) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $1, stage = $2, error_message = $3, total_pages = $4, total_chunks = $5, updated_at = NOW()
		WHERE id = $6 AND status NOT IN ($7, $8)
	`,
		string(state.Status), string(state.Stage), state.ErrorMessage,
		state.TotalPages, state.TotalChunks,
		id, string(domain.StatusCompleted), string(domain.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("updating document state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.store.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = $1", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	return fmt.Errorf("%w: document %s is already terminal", domain.ErrInvalidTransition, id)
}

func (s *statusStore) ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = $1 ORDER BY created_at, id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.DocumentRecord, error) {
	var (
		doc           domain.DocumentRecord
		status, stage string
	)
	if err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Name, &doc.StoragePath,
		&status, &stage, &doc.State.ErrorMessage,
		&doc.State.TotalPages, &doc.State.TotalChunks,
		&doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.State.Status = domain.ProcessingStatus(status)
	doc.State.Stage = domain.ProcessingStage(stage)
	return &doc, nil
}
