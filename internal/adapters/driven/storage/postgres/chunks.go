package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.ChunkStore = (*chunkStore)(nil)

type chunkStore struct {
	store *Store
}

// StoreChunks validates every embedding first and writes nothing if any is
// invalid. Valid batches are inserted in one transaction.
func (c *chunkStore) StoreChunks(ctx context.Context, req domain.StoreRequest) (*domain.StoreResult, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if len(req.Chunks) == 0 {
		return &domain.StoreResult{Success: true}, nil
	}

	if errs := c.store.validateEmbeddings(req.Chunks); len(errs) > 0 {
		return &domain.StoreResult{
			Success:     false,
			FailedCount: len(req.Chunks),
			Errors:      errs,
		}, nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, user_id, page_number, chunk_index, text,
			token_count, position_start, position_end, section_title, embedding, embedding_model, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model,
			metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range req.Chunks {
		chunk := &req.Chunks[i]

		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling chunk %d metadata: %w", chunk.ChunkIndex, err)
		}

		model := chunk.EmbeddingModel
		if model == "" {
			model = req.EmbeddingModel
		}

		if _, err := stmt.ExecContext(ctx,
			chunk.ID, req.DocumentID, req.UserID, chunk.PageNumber, chunk.ChunkIndex, chunk.Text,
			chunk.TokenCount, chunk.PagePositionStart, chunk.PagePositionEnd, chunk.SectionTitle,
			pgvector.NewVector(chunk.Embedding), model, string(metadata),
		); err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chunks: %w", err)
	}
	return &domain.StoreResult{Success: true, StoredCount: len(req.Chunks)}, nil
}

func (c *chunkStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := c.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

func (c *chunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = $1", documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

func (s *Store) validateEmbeddings(chunks []domain.Chunk) []string {
	var errs []string
	for _, chunk := range chunks {
		switch {
		case len(chunk.Embedding) == 0:
			errs = append(errs, fmt.Sprintf("chunk %d: missing embedding", chunk.ChunkIndex))
		case s.dimensions > 0 && len(chunk.Embedding) != s.dimensions:
			errs = append(errs, fmt.Sprintf("chunk %d: %v: got %d, want %d",
				chunk.ChunkIndex, domain.ErrDimensionMismatch, len(chunk.Embedding), s.dimensions))
		}
	}
	return errs
}
