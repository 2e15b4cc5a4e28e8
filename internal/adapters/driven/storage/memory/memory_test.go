package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

func TestStatusStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStatusStore()

	require.NoError(t, store.Create(ctx, &domain.DocumentRecord{ID: "doc-1", UserID: "u", Name: "a.pdf"}))
	assert.ErrorIs(t, store.Create(ctx, &domain.DocumentRecord{ID: "doc-1"}), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Create(ctx, &domain.DocumentRecord{}), domain.ErrInvalidInput)

	doc, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, doc.State.Status)

	completed := domain.DocumentProcessingState{Status: domain.StatusCompleted, Stage: domain.StageStoring, TotalChunks: 3}
	require.NoError(t, store.UpdateState(ctx, "doc-1", completed))
	assert.ErrorIs(t, store.UpdateState(ctx, "doc-1", domain.PendingState()), domain.ErrInvalidTransition)
	assert.ErrorIs(t, store.UpdateState(ctx, "missing", domain.PendingState()), domain.ErrNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusStore_ListByStatusOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewStatusStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, &domain.DocumentRecord{ID: "late", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.Create(ctx, &domain.DocumentRecord{ID: "early", CreatedAt: base}))

	docs, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "early", docs[0].ID)
	assert.Equal(t, "late", docs[1].ID)
}

func TestChunkStore_StoreSearchDelete(t *testing.T) {
	ctx := context.Background()
	statuses := NewStatusStore()
	require.NoError(t, statuses.Create(ctx, &domain.DocumentRecord{ID: "doc-1", UserID: "u", Name: "manual.pdf"}))
	store := NewChunkStore(2, statuses)

	result, err := store.StoreChunks(ctx, domain.StoreRequest{
		DocumentID: "doc-1",
		UserID:     "u",
		Chunks: []domain.Chunk{
			{ID: "c0", ChunkIndex: 0, Embedding: []float32{1, 0}},
			{ID: "c1", ChunkIndex: 1, Embedding: []float32{0, 1}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	results, err := store.Search(ctx, domain.SearchQuery{Embedding: []float32{1, 0}, UserID: "u", TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c0", results[0].ChunkID)
	assert.Equal(t, "manual.pdf", results[0].DocumentName)
	assert.Zero(t, results[1].SimilarityScore)

	other, err := store.Search(ctx, domain.SearchQuery{Embedding: []float32{1, 0}, UserID: "other", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.DeleteDocumentChunks(ctx, "doc-1"))
	n, err := store.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkStore_RejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	store := NewChunkStore(2, nil)

	result, err := store.StoreChunks(ctx, domain.StoreRequest{
		DocumentID: "doc-1",
		Chunks:     []domain.Chunk{{ChunkIndex: 0, Embedding: []float32{1, 0, 0}}},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedCount)

	_, err = store.Search(ctx, domain.SearchQuery{Embedding: []float32{1}, TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
