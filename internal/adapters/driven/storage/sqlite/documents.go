package sqlite

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

// Create saves a new document record.
func (s *statusStore) Create(ctx context.Context, doc *domain.DocumentRecord) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	now := time.Now()
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		doc.ID, doc.UserID, doc.Name, doc.StoragePath,
		string(doc.State.Status), string(doc.State.Stage), doc.State.ErrorMessage,
		doc.State.TotalPages, doc.State.TotalChunks,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: document %s", domain.ErrAlreadyExists, doc.ID)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Get retrieves a document record by ID.
func (s *statusStore) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// UpdateState replaces a document's processing state. The update is a single
// conditional statement so a terminal document can never be reopened, even
// by concurrent writers.
func (s *statusStore) UpdateState(ctx context.Context, id string, state domain.DocumentProcessingState) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, stage = ?, error_message = ?, total_pages = ?, total_chunks = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`,
		string(state.Status), string(state.Stage), state.ErrorMessage,
		state.TotalPages, state.TotalChunks, time.Now().UTC(),
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

	// Nothing updated: either the document is missing or already terminal.
	var exists int
	err = s.store.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	return fmt.Errorf("%w: document %s is already terminal", domain.ErrInvalidTransition, id)
}

// ListByStatus returns documents currently in the given status, oldest first.
func (s *statusStore) ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? ORDER BY created_at, id`,
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

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.DocumentRecord, error) {
	var (
		doc           domain.DocumentRecord
		status, stage string
	)
	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Name, &doc.StoragePath,
		&status, &stage, &doc.State.ErrorMessage,
		&doc.State.TotalPages, &doc.State.TotalChunks,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.State.Status = domain.ProcessingStatus(status)
	doc.State.Stage = domain.ProcessingStage(stage)
	return &doc, nil
}

// isUniqueViolation matches the SQLite constraint error text, since the
// driver does not expose typed codes through database/sql.
func isUniqueViolation(err error) bool {
	return err != nil && containsAny(err.Error(), "UNIQUE constraint failed", "PRIMARY KEY")
}
