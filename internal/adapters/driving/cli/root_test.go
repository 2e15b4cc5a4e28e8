package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
)

// --- Mock implementations ---

type mockIngestion struct {
	mu        sync.Mutex
	docs      map[string]*domain.DocumentRecord
	order     []string
	submitted []domain.SubmitRequest
	submitErr error

	// finish is applied to every document the first time its status is read.
	finish func(doc *domain.DocumentRecord)
}

func newMockIngestion() *mockIngestion {
	return &mockIngestion{docs: make(map[string]*domain.DocumentRecord)}
}

func (m *mockIngestion) Submit(_ context.Context, req domain.SubmitRequest) (*domain.SubmitAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	id := fmt.Sprintf("doc-%d", len(m.submitted))
	name := req.Name
	if name == "" {
		name = req.StoragePath
	}
	m.docs[id] = &domain.DocumentRecord{
		ID:          id,
		UserID:      req.UserID,
		Name:        name,
		StoragePath: req.StoragePath,
		State:       domain.DocumentProcessingState{Status: domain.StatusPending},
	}
	m.order = append(m.order, id)
	return &domain.SubmitAck{DocumentID: id, State: m.docs[id].State}, nil
}

func (m *mockIngestion) Status(_ context.Context, id string) (*domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.finish != nil && !doc.State.IsTerminal() {
		m.finish(doc)
	}
	cp := *doc
	return &cp, nil
}

// completeAll marks every pending document completed.
func (m *mockIngestion) completeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		doc.State = domain.DocumentProcessingState{
			Status:      domain.StatusCompleted,
			TotalPages:  2,
			TotalChunks: 3,
		}
	}
}

type mockAnswers struct {
	answer *domain.RAGAnswer
	last   domain.AnswerRequest
}

func (m *mockAnswers) Answer(_ context.Context, req domain.AnswerRequest) *domain.RAGAnswer {
	m.last = req
	return m.answer
}

type mockWorker struct {
	mu        sync.Mutex
	runs      int
	recovered int
	block     bool
	onRun     func()
}

func (w *mockWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	w.runs++
	w.mu.Unlock()
	if w.onRun != nil {
		w.onRun()
	}
	if w.block {
		<-ctx.Done()
	}
	return nil
}

func (w *mockWorker) RecoverStale(_ context.Context) (int, error) {
	return w.recovered, nil
}

func (w *mockWorker) runCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

var (
	_ driving.IngestionService = (*mockIngestion)(nil)
	_ driving.AnswerService    = (*mockAnswers)(nil)
	_ Worker                   = (*mockWorker)(nil)
)

type testServices struct {
	ingestion   *mockIngestion
	answers     *mockAnswers
	worker      *mockWorker
	queueClosed bool
	svc         *Services
}

// setupTestServices installs mock services and resets command state on cleanup.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		ingestion: newMockIngestion(),
		answers:   &mockAnswers{answer: &domain.RAGAnswer{Sources: []domain.SourceReference{}}},
		worker:    &mockWorker{},
	}
	ts.svc = &Services{
		Ingestion: ts.ingestion,
		Answers: func(context.Context) (driving.AnswerService, error) {
			return ts.answers, nil
		},
		Worker: func(context.Context) (Worker, error) {
			return ts.worker, nil
		},
		CloseQueue: func() error {
			ts.queueClosed = true
			return nil
		},
		InlineQueue: true,
	}
	svc = ts.svc

	t.Cleanup(func() {
		svc, closeFunc, bootstrap = nil, nil, nil
		ingestUser, ingestName, ingestWait, ingestWatch = "alice", "", false, ""
		askUser, askDocs, askJSON, askMaxResults = "alice", nil, false, 0
		statusJSON, serveMCP = false, false
		dataDirFlag, mcpPort = "", 0
		rootCmd.SetArgs(nil)
	})
	ingestUser, askUser = "alice", "alice"
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "pagewise", rootCmd.Use)
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	verbose := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("data-dir"))
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ask", "config", "ingest", "mcp", "serve", "status", "version", "worker"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestServices_NotConfigured(t *testing.T) {
	setupTestServices(t)
	svc = nil

	_, err := execute(t, "status", "doc-1")

	assert.ErrorIs(t, err, errNoConfig)
}

func TestServices_BootstrapsOnce(t *testing.T) {
	ts := setupTestServices(t)
	svc = nil

	calls := 0
	var gotDir string
	SetBootstrap(func(_ context.Context, dataDir string) (*Services, func() error, error) {
		calls++
		gotDir = dataDir
		return ts.svc, func() error { return nil }, nil
	})
	ts.ingestion.docs["doc-1"] = &domain.DocumentRecord{ID: "doc-1"}

	_, err := execute(t, "--data-dir", "/tmp/pw", "status", "doc-1")
	require.NoError(t, err)
	_, err = execute(t, "status", "doc-1")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "/tmp/pw", gotDir)
	dataDirFlag = ""
}

func TestServices_BootstrapError(t *testing.T) {
	setupTestServices(t)
	svc = nil
	SetBootstrap(func(context.Context, string) (*Services, func() error, error) {
		return nil, nil, errors.New("invalid configuration")
	})

	_, err := execute(t, "status", "doc-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestExecute_ClosesServices(t *testing.T) {
	setupTestServices(t)
	closed := false
	closeFunc = func() error {
		closed = true
		return nil
	}
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, Execute(context.Background()))
	assert.True(t, closed)
	assert.Nil(t, closeFunc)
}
