package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// JobProcessor runs one ingestion job to completion.
type JobProcessor interface {
	Process(ctx context.Context, job domain.IngestionJob) error
}

// Ensure Pipeline implements the interface.
var _ JobProcessor = (*Pipeline)(nil)

// Pipeline drives a document through download, extraction, chunking,
// embedding and storage. Each stage is persisted before its work begins so
// an interrupted run is visible at the last attempted stage.
type Pipeline struct {
	statuses   driven.DocumentStatusStore
	source     driven.DocumentSource
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.Embedder
	chunks     driven.ChunkStore
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	statuses driven.DocumentStatusStore,
	source driven.DocumentSource,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.Embedder,
	chunks driven.ChunkStore,
) *Pipeline {
	return &Pipeline{
		statuses:   statuses,
		source:     source,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		chunks:     chunks,
	}
}

// stageError marks an error already recorded against a stage.
type stageError struct {
	stage domain.ProcessingStage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// run tracks the state of one document through the pipeline.
type run struct {
	p     *Pipeline
	ctx   context.Context
	job   domain.IngestionJob
	state domain.DocumentProcessingState
}

// enter persists processing/<stage> before the stage runs.
func (r *run) enter(stage domain.ProcessingStage) error {
	r.state.Status = domain.StatusProcessing
	r.state.Stage = stage
	logger.Info("Document %s: %s", r.job.DocumentID, stage)
	if err := r.p.statuses.UpdateState(r.ctx, r.job.DocumentID, r.state); err != nil {
		return fmt.Errorf("persist stage %s: %w", stage, err)
	}
	return nil
}

// fail persists failed/failed_<stage> with the error text verbatim.
func (r *run) fail(err error) error {
	stage := r.state.Stage
	failed := r.state
	failed.Status = domain.StatusFailed
	failed.Stage = stage.Failed()
	failed.ErrorMessage = err.Error()

	logger.Warn("Document %s failed at %s: %v", r.job.DocumentID, stage, err)
	if uerr := r.p.statuses.UpdateState(r.ctx, r.job.DocumentID, failed); uerr != nil {
		logger.Warn("Document %s: recording failure: %v", r.job.DocumentID, uerr)
	}
	return &stageError{stage: stage, err: err}
}

// Process runs every stage for the job. The returned error, if any, has
// already been recorded on the document.
func (p *Pipeline) Process(ctx context.Context, job domain.IngestionJob) error {
	logger.Section("Ingest " + job.DocumentID)
	r := &run{p: p, ctx: ctx, job: job}

	// 1. Download
	if err := r.enter(domain.StageDownloading); err != nil {
		return err
	}
	data, err := p.source.Fetch(ctx, job.StoragePath)
	if err != nil {
		return r.fail(fmt.Errorf("fetch %s: %w", job.StoragePath, err))
	}
	logger.Debug("Downloaded %d bytes from %s", len(data), job.StoragePath)

	// 2. Extract
	if err := r.enter(domain.StageExtracting); err != nil {
		return err
	}
	pages, err := p.extract(ctx, job, data)
	if err != nil {
		return r.fail(err)
	}
	r.state.TotalPages = len(pages)

	// 3. Chunk
	if err := r.enter(domain.StageChunking); err != nil {
		return err
	}
	result, err := p.chunker.Chunk(ctx, pages, job.DocumentID)
	if err != nil {
		return r.fail(err)
	}
	if len(result.Chunks) == 0 {
		return r.fail(errors.New("chunking produced no chunks"))
	}
	logger.Debug("Chunked %d pages into %d chunks with %s (%d tokens)",
		len(pages), len(result.Chunks), p.chunker.Name(), result.TotalTokens)

	// 4. Embed
	if err := r.enter(domain.StageEmbedding); err != nil {
		return err
	}
	chunks := result.Chunks
	if err := p.embed(ctx, chunks); err != nil {
		return r.fail(err)
	}

	// 5. Store
	if err := r.enter(domain.StageStoring); err != nil {
		return err
	}
	if err := p.store(ctx, job, chunks); err != nil {
		return r.fail(err)
	}

	// 6. Complete
	r.state.Status = domain.StatusCompleted
	r.state.TotalChunks = len(chunks)
	if err := p.statuses.UpdateState(ctx, job.DocumentID, r.state); err != nil {
		return fmt.Errorf("persist completion: %w", err)
	}
	logger.Infow("document completed", "document_id", job.DocumentID,
		"pages", r.state.TotalPages, "chunks", r.state.TotalChunks)
	return nil
}

// extract selects an extractor by filename and rejects empty output.
func (p *Pipeline) extract(ctx context.Context, job domain.IngestionJob, data []byte) ([]domain.PageContent, error) {
	filename := job.Name
	if filename == "" {
		filename = job.StoragePath
	}
	extractor, err := p.extractors.Get(filename)
	if err != nil {
		return nil, err
	}

	result, err := extractor.Extract(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "extractor reported failure"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrExtractionFailed, msg)
	}

	for _, page := range result.Pages {
		if strings.TrimSpace(page.Text) != "" {
			logger.Debug("Extracted %d pages with %s", len(result.Pages), extractor.Name())
			return result.Pages, nil
		}
	}
	return nil, fmt.Errorf("%w: document contains no text", domain.ErrExtractionFailed)
}

// embed fills in every chunk's embedding. Any per-item failure fails the
// whole stage with the error of the lowest failed index.
func (p *Pipeline) embed(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	batch, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if batch.Failed() {
		first := batch.Errors[0]
		for _, e := range batch.Errors[1:] {
			if e.Index < first.Index {
				first = e
			}
		}
		logger.Debug("%d of %d chunks failed to embed; first at index %d", len(batch.Errors), len(chunks), first.Index)
		return errors.New(first.Error)
	}
	if len(batch.Results) != len(chunks) {
		return fmt.Errorf("embedding returned %d results for %d chunks", len(batch.Results), len(chunks))
	}

	model := p.embedder.ModelInfo().Name
	for i := range chunks {
		chunks[i].Embedding = batch.Results[i].Vector
		chunks[i].EmbeddingModel = batch.Results[i].Model
		if chunks[i].EmbeddingModel == "" {
			chunks[i].EmbeddingModel = model
		}
	}
	return nil
}

// store replaces any chunks left by an earlier run, then saves the batch.
func (p *Pipeline) store(ctx context.Context, job domain.IngestionJob, chunks []domain.Chunk) error {
	if err := p.chunks.DeleteDocumentChunks(ctx, job.DocumentID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}

	result, err := p.chunks.StoreChunks(ctx, domain.StoreRequest{
		DocumentID:     job.DocumentID,
		UserID:         job.UserID,
		EmbeddingModel: p.embedder.ModelInfo().Name,
		Chunks:         chunks,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		if len(result.Errors) > 0 {
			return errors.New(result.Errors[0])
		}
		return fmt.Errorf("storage rejected %d chunks", result.FailedCount)
	}
	logger.Debug("Stored %d chunks", result.StoredCount)
	return nil
}
