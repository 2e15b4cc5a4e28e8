package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

const testDims = 3

// startPostgres runs a pgvector-enabled Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pagewise",
				"POSTGRES_PASSWORD": "pagewise",
				"POSTGRES_DB":       "pagewise",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://pagewise:pagewise@%s:%s/pagewise?sslmode=disable", host, port.Port())
}

func TestStore_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	store, err := NewStore(ctx, dsn, testDims)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, testDims, store.Dimensions())

	t.Run("reopen with other dimension fails", func(t *testing.T) {
		_, err := NewStore(ctx, dsn, 8)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	statuses := store.StatusStore()
	for _, id := range []string{"doc-1", "doc-2"} {
		require.NoError(t, statuses.Create(ctx, &domain.DocumentRecord{
			ID:          id,
			UserID:      "user-1",
			Name:        id + ".pdf",
			StoragePath: "/tmp/" + id,
		}))
	}

	t.Run("duplicate create", func(t *testing.T) {
		err := statuses.Create(ctx, &domain.DocumentRecord{ID: "doc-1", UserID: "user-1"})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("state transitions", func(t *testing.T) {
		require.NoError(t, statuses.UpdateState(ctx, "doc-2", domain.DocumentProcessingState{
			Status:       domain.StatusFailed,
			Stage:        domain.StageExtracting.Failed(),
			ErrorMessage: "no text",
		}))

		err := statuses.UpdateState(ctx, "doc-2", domain.PendingState())
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		err = statuses.UpdateState(ctx, "missing", domain.PendingState())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		failed, err := statuses.ListByStatus(ctx, domain.StatusFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "no text", failed[0].State.ErrorMessage)
	})

	chunks := store.ChunkStore()

	t.Run("invalid batch stores nothing", func(t *testing.T) {
		result, err := chunks.StoreChunks(ctx, domain.StoreRequest{
			DocumentID: "doc-1",
			UserID:     "user-1",
			Chunks: []domain.Chunk{
				{ID: "c0", ChunkIndex: 0, Text: "a", Embedding: []float32{1, 0, 0}},
				{ID: "c1", ChunkIndex: 1, Text: "b", Embedding: []float32{1, 0}},
			},
		})
		require.NoError(t, err)
		assert.False(t, result.Success)

		n, err := chunks.CountChunks(ctx, "doc-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("store and search", func(t *testing.T) {
		result, err := chunks.StoreChunks(ctx, domain.StoreRequest{
			DocumentID:     "doc-1",
			UserID:         "user-1",
			EmbeddingModel: "nomic-embed-text",
			Chunks: []domain.Chunk{
				{ID: "c0", PageNumber: 1, ChunkIndex: 0, Text: "exact", Embedding: []float32{1, 0, 0}},
				{ID: "c1", PageNumber: 1, ChunkIndex: 1, Text: "close", Embedding: []float32{0.8, 0.6, 0}},
				{ID: "c2", PageNumber: 2, ChunkIndex: 2, Text: "far", Embedding: []float32{0, 1, 0}},
			},
		})
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, 3, result.StoredCount)

		results, err := store.SearchOperation().Search(ctx, domain.SearchQuery{
			Embedding:           []float32{1, 0, 0},
			UserID:              "user-1",
			SimilarityThreshold: 0.5,
			TopK:                5,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "c0", results[0].ChunkID)
		assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
		assert.Equal(t, "doc-1.pdf", results[0].DocumentName)
		assert.Equal(t, "c1", results[1].ChunkID)
		assert.InDelta(t, 0.8, results[1].SimilarityScore, 1e-6)

		filtered, err := store.SearchOperation().Search(ctx, domain.SearchQuery{
			Embedding:   []float32{1, 0, 0},
			UserID:      "user-1",
			TopK:        5,
			DocumentIDs: []string{"doc-2"},
		})
		require.NoError(t, err)
		assert.Empty(t, filtered)
	})

	t.Run("delete chunks", func(t *testing.T) {
		require.NoError(t, chunks.DeleteDocumentChunks(ctx, "doc-1"))
		n, err := chunks.CountChunks(ctx, "doc-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "", testDims)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(fmt.Errorf("boom")))
}
