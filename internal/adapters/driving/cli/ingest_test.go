package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

func TestIngestCmd_Flags(t *testing.T) {
	user := ingestCmd.Flags().Lookup("user")
	require.NotNil(t, user)
	assert.Equal(t, "u", user.Shorthand)

	wait := ingestCmd.Flags().Lookup("wait")
	require.NotNil(t, wait)
	assert.Equal(t, "w", wait.Shorthand)
	assert.Equal(t, "false", wait.DefValue)

	assert.NotNil(t, ingestCmd.Flags().Lookup("name"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("watch"))
}

func TestIngestCmd_RequiresPath(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one path")
}

func TestIngestCmd_NameRequiresSinglePath(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ingest", "--name", "Manual", "a.pdf", "b.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one path")
}

func TestIngestCmd_InlineQueueDrains(t *testing.T) {
	ts := setupTestServices(t)
	ts.worker.onRun = ts.ingestion.completeAll

	out, err := execute(t, "ingest", "s3://docs/a.pdf", "s3://docs/b.pdf")

	require.NoError(t, err)
	assert.True(t, ts.queueClosed)
	assert.Equal(t, 1, ts.worker.runCount())
	assert.Contains(t, out, "Queued s3://docs/a.pdf as doc-1")
	assert.Contains(t, out, "Queued s3://docs/b.pdf as doc-2")
	assert.Contains(t, out, "completed (2 pages, 3 chunks)")

	require.Len(t, ts.ingestion.submitted, 2)
	assert.Equal(t, "alice", ts.ingestion.submitted[0].UserID)
}

func TestIngestCmd_ResolvesLocalPaths(t *testing.T) {
	ts := setupTestServices(t)
	ts.worker.onRun = ts.ingestion.completeAll
	ts.svc.Resolve = func(path string) (string, error) {
		return filepath.Join("/data", path), nil
	}

	_, err := execute(t, "ingest", "--name", "Router Manual", "manual.pdf")

	require.NoError(t, err)
	require.Len(t, ts.ingestion.submitted, 1)
	assert.Equal(t, "/data/manual.pdf", ts.ingestion.submitted[0].StoragePath)
	assert.Equal(t, "Router Manual", ts.ingestion.submitted[0].Name)
}

func TestIngestCmd_ResolveError(t *testing.T) {
	ts := setupTestServices(t)
	ts.svc.Resolve = func(string) (string, error) {
		return "", errors.New("outside the storage root")
	}

	_, err := execute(t, "ingest", "../secret.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the storage root")
	assert.Empty(t, ts.ingestion.submitted)
}

func TestIngestCmd_FailedDocumentReturnsError(t *testing.T) {
	ts := setupTestServices(t)
	ts.worker.onRun = func() {
		ts.ingestion.mu.Lock()
		defer ts.ingestion.mu.Unlock()
		ts.ingestion.docs["doc-1"].State = domain.DocumentProcessingState{
			Status:       domain.StatusFailed,
			Stage:        domain.StageExtracting.Failed(),
			ErrorMessage: "no text found",
		}
	}

	out, err := execute(t, "ingest", "s3://docs/scan.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 documents failed")
	assert.Contains(t, out, "failed_extracting: no text found")
}

func TestIngestCmd_WorkerUnavailableSubmitsNothing(t *testing.T) {
	ts := setupTestServices(t)
	ts.svc.Worker = func(context.Context) (Worker, error) {
		return nil, errors.New("embedding provider ollama: connection refused")
	}

	tests := []struct {
		name string
		args []string
	}{
		{"drain", []string{"ingest", "s3://docs/a.pdf"}},
		{"watch", []string{"ingest", "--watch", t.TempDir(), "s3://docs/a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "cannot process documents: embedding provider ollama: connection refused")
			assert.Empty(t, ts.ingestion.submitted)
			assert.Empty(t, ts.ingestion.docs)
			assert.False(t, ts.queueClosed)
		})
	}
}

func TestIngestCmd_RemoteQueueReturnsAfterSubmit(t *testing.T) {
	ts := setupTestServices(t)
	ts.svc.InlineQueue = false

	out, err := execute(t, "ingest", "s3://docs/a.pdf")

	require.NoError(t, err)
	assert.False(t, ts.queueClosed)
	assert.Zero(t, ts.worker.runCount())
	assert.Contains(t, out, "Queued s3://docs/a.pdf as doc-1")
	assert.NotContains(t, out, "completed")
}

func TestIngestCmd_WaitPollsUntilTerminal(t *testing.T) {
	ts := setupTestServices(t)
	ts.svc.InlineQueue = false
	ts.ingestion.finish = func(doc *domain.DocumentRecord) {
		doc.State = domain.DocumentProcessingState{Status: domain.StatusCompleted, TotalPages: 1, TotalChunks: 1}
	}

	out, err := execute(t, "ingest", "--wait", "s3://docs/a.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "completed (1 pages, 1 chunks)")
}

func TestWaitForTerminal_Cancelled(t *testing.T) {
	ts := setupTestServices(t)
	ack, err := ts.ingestion.Submit(context.Background(), domain.SubmitRequest{UserID: "alice", StoragePath: "/a.pdf"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = waitForTerminal(ctx, ts.svc, []string{ack.DocumentID})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatState(t *testing.T) {
	tests := []struct {
		name  string
		state domain.DocumentProcessingState
		want  string
	}{
		{
			name:  "completed",
			state: domain.DocumentProcessingState{Status: domain.StatusCompleted, TotalPages: 4, TotalChunks: 9},
			want:  "doc-1  a.pdf  completed (4 pages, 9 chunks)",
		},
		{
			name: "failed",
			state: domain.DocumentProcessingState{
				Status:       domain.StatusFailed,
				Stage:        domain.StageEmbedding.Failed(),
				ErrorMessage: "provider unavailable",
			},
			want: "doc-1  a.pdf  failed_embedding: provider unavailable",
		},
		{
			name:  "processing",
			state: domain.DocumentProcessingState{Status: domain.StatusProcessing, Stage: domain.StageChunking},
			want:  "doc-1  a.pdf  processing (chunking)",
		},
		{
			name:  "pending",
			state: domain.DocumentProcessingState{Status: domain.StatusPending},
			want:  "doc-1  a.pdf  pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &domain.DocumentRecord{ID: "doc-1", Name: "a.pdf", State: tt.state}
			assert.Equal(t, tt.want, formatState(doc))
		})
	}
}

func TestDefaultUser(t *testing.T) {
	t.Run("prefers PAGEWISE_USER", func(t *testing.T) {
		t.Setenv("PAGEWISE_USER", "svc-ingest")
		t.Setenv("USER", "alice")
		assert.Equal(t, "svc-ingest", defaultUser())
	})

	t.Run("falls back to login name", func(t *testing.T) {
		t.Setenv("PAGEWISE_USER", "")
		t.Setenv("USER", "alice")
		assert.Equal(t, "alice", defaultUser())
	})

	t.Run("default when unset", func(t *testing.T) {
		t.Setenv("PAGEWISE_USER", "")
		t.Setenv("USER", " ")
		t.Setenv("USERNAME", "")
		assert.Equal(t, "default", defaultUser())
	})
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"docs/manual.pdf", false},
		{"docs/.manual.pdf.swp", true},
		{".cache/manual.pdf", true},
		{"../docs/manual.pdf", false},
		{"./manual.pdf", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isHidden(tt.path), tt.path)
	}
}
