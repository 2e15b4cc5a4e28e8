package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract"
	storage "github.com/custodia-labs/pagewise/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/postprocessors/chunker"
)

const twoPageText = "Resetting the router restores factory settings. Hold the button for ten seconds.\f" +
	"The warranty covers hardware faults for two years from the date of purchase."

type pipelineFixture struct {
	pipeline *Pipeline
	statuses *storage.StatusStore
	chunks   *storage.ChunkStore
	embedder *mockEmbedder
	source   *mapSource
}

func newPipelineFixture(t *testing.T, dimensions int) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		statuses: storage.NewStatusStore(),
		embedder: newMockEmbedder(1, 0, 0),
		source: &mapSource{files: map[string][]byte{
			"/docs/manual.txt": []byte(twoPageText),
			"/docs/empty.txt":  []byte("  \f  "),
			"/docs/image.xyz":  []byte("binary"),
		}},
	}
	f.chunks = storage.NewChunkStore(dimensions, f.statuses)
	f.pipeline = NewPipeline(
		f.statuses,
		f.source,
		extract.NewDefaultRegistry(),
		chunker.New(wordSizer{}, chunker.WithChunkSize(50), chunker.WithOverlap(5)),
		f.embedder,
		f.chunks,
	)
	return f
}

// submit creates a pending record and returns the job for it.
func (f *pipelineFixture) submit(t *testing.T, path string) domain.IngestionJob {
	t.Helper()
	id := fmt.Sprintf("doc-%d", time.Now().UnixNano())
	require.NoError(t, f.statuses.Create(context.Background(), &domain.DocumentRecord{
		ID:          id,
		UserID:      "alice",
		Name:        path[len("/docs/"):],
		StoragePath: path,
		State:       domain.PendingState(),
	}))
	return domain.IngestionJob{DocumentID: id, UserID: "alice", Name: path[len("/docs/"):], StoragePath: path}
}

func (f *pipelineFixture) state(t *testing.T, id string) domain.DocumentProcessingState {
	t.Helper()
	doc, err := f.statuses.Get(context.Background(), id)
	require.NoError(t, err)
	return doc.State
}

func TestPipeline_ProcessCompletes(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, 3)
	job := f.submit(t, "/docs/manual.txt")

	require.NoError(t, f.pipeline.Process(ctx, job))

	state := f.state(t, job.DocumentID)
	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Equal(t, domain.StageStoring, state.Stage)
	assert.Empty(t, state.ErrorMessage)
	assert.Equal(t, 2, state.TotalPages)
	assert.Equal(t, 2, state.TotalChunks)

	count, err := f.chunks.CountChunks(ctx, job.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, state.TotalChunks, count)

	results, err := f.chunks.Search(ctx, domain.SearchQuery{Embedding: []float32{1, 0, 0}, UserID: "alice", TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "manual.txt", results[0].DocumentName)
	pages := []int{results[0].PageNumber, results[1].PageNumber}
	assert.ElementsMatch(t, []int{1, 2}, pages)
}

func TestPipeline_ReprocessReplacesChunks(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, 3)
	job := f.submit(t, "/docs/manual.txt")

	_, err := f.chunks.StoreChunks(ctx, domain.StoreRequest{
		DocumentID: job.DocumentID,
		UserID:     "alice",
		Chunks: []domain.Chunk{
			{ID: "stale", PageNumber: 9, Text: "stale", Embedding: []float32{0, 1, 0}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Process(ctx, job))

	count, err := f.chunks.CountChunks(ctx, job.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipeline_ProcessFailures(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		setup     func(f *pipelineFixture)
		dims      int
		wantStage domain.ProcessingStage
		wantMsg   string
		wantErr   error
	}{
		{
			name:      "missing file",
			path:      "/docs/missing.txt",
			wantStage: "failed_downloading",
			wantErr:   domain.ErrNotFound,
		},
		{
			name:      "unsupported format",
			path:      "/docs/image.xyz",
			wantStage: "failed_extracting",
			wantErr:   domain.ErrUnsupportedFormat,
		},
		{
			name:      "no text",
			path:      "/docs/empty.txt",
			wantStage: "failed_extracting",
			wantErr:   domain.ErrExtractionFailed,
		},
		{
			name: "embedding retries exhausted",
			path: "/docs/manual.txt",
			setup: func(f *pipelineFixture) {
				f.embedder.failAt = map[int]string{
					0: "connection refused",
					1: "model not loaded",
				}
			},
			wantStage: "failed_embedding",
			wantMsg:   "connection refused",
		},
		{
			name: "embedding call abandoned",
			path: "/docs/manual.txt",
			setup: func(f *pipelineFixture) {
				f.embedder.batchErr = domain.ErrProviderUnavailable
			},
			wantStage: "failed_embedding",
			wantErr:   domain.ErrProviderUnavailable,
		},
		{
			name:      "dimension mismatch",
			path:      "/docs/manual.txt",
			dims:      4,
			wantStage: "failed_storing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims := tt.dims
			if dims == 0 {
				dims = 3
			}
			f := newPipelineFixture(t, dims)
			if tt.setup != nil {
				tt.setup(f)
			}
			job := f.submit(t, tt.path)

			err := f.pipeline.Process(context.Background(), job)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			var se *stageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStage, se.stage.Failed())

			state := f.state(t, job.DocumentID)
			assert.Equal(t, domain.StatusFailed, state.Status)
			assert.Equal(t, tt.wantStage, state.Stage)
			assert.NotEmpty(t, state.ErrorMessage)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, state.ErrorMessage)
			}

			count, err := f.chunks.CountChunks(context.Background(), job.DocumentID)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestPipeline_TerminalDocumentIsNotReprocessed(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, 3)
	job := f.submit(t, "/docs/manual.txt")
	require.NoError(t, f.statuses.UpdateState(ctx, job.DocumentID, domain.DocumentProcessingState{
		Status: domain.StatusFailed,
		Stage:  domain.StageDownloading.Failed(),
	}))

	err := f.pipeline.Process(ctx, job)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, f.embedder.calls)
}
