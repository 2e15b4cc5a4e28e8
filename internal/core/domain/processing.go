package domain

import (
	"strings"
	"time"
)

// ProcessingStatus is the coarse lifecycle status of a document.
type ProcessingStatus string

// Processing statuses.
const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// IsTerminal returns true for statuses a document never leaves.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProcessingStage is the ingestion step a document is in, or "failed_<stage>"
// once that step failed.
type ProcessingStage string

// Ingestion stages, in execution order.
const (
	StageDownloading ProcessingStage = "downloading"
	StageExtracting  ProcessingStage = "extracting"
	StageChunking    ProcessingStage = "chunking"
	StageEmbedding   ProcessingStage = "embedding"
	StageStoring     ProcessingStage = "storing"
)

const failedStagePrefix = "failed_"

// PipelineStages returns the ingestion stages in execution order.
func PipelineStages() []ProcessingStage {
	return []ProcessingStage{
		StageDownloading,
		StageExtracting,
		StageChunking,
		StageEmbedding,
		StageStoring,
	}
}

// Failed returns the failure marker for this stage, e.g. "failed_embedding".
func (s ProcessingStage) Failed() ProcessingStage {
	if s.IsFailure() {
		return s
	}
	return ProcessingStage(failedStagePrefix + string(s))
}

// IsFailure returns true for "failed_<stage>" values.
func (s ProcessingStage) IsFailure() bool {
	return strings.HasPrefix(string(s), failedStagePrefix)
}

// order returns the position of the stage in the pipeline, -1 if unknown.
func (s ProcessingStage) order() int {
	for i, stage := range PipelineStages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// DocumentProcessingState is the persisted processing state of one document.
type DocumentProcessingState struct {
	Status       ProcessingStatus
	Stage        ProcessingStage
	ErrorMessage string
	TotalPages   int
	TotalChunks  int
}

// PendingState returns the state a newly submitted document starts in.
func PendingState() DocumentProcessingState {
	return DocumentProcessingState{Status: StatusPending}
}

// IsTerminal returns true once the document completed or failed.
func (s DocumentProcessingState) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Stages only move forward one step at a time, completion is only reachable
// from storing, and terminal states are final.
func (s DocumentProcessingState) CanTransitionTo(next DocumentProcessingState) bool {
	if s.IsTerminal() {
		return false
	}

	switch next.Status {
	case StatusProcessing:
		if s.Status == StatusPending {
			return next.Stage == StageDownloading
		}
		cur, nxt := s.Stage.order(), next.Stage.order()
		return nxt >= 0 && (nxt == cur || nxt == cur+1)
	case StatusCompleted:
		return s.Status == StatusProcessing && s.Stage == StageStoring
	case StatusFailed:
		return next.Stage.IsFailure()
	default:
		return false
	}
}

// DocumentRecord is a submitted document and its processing state.
type DocumentRecord struct {
	// ID is the unique identifier for the document.
	ID string

	// UserID scopes the document and its chunks to one user.
	UserID string

	// Name is the original filename, shown in citations.
	Name string

	// StoragePath locates the raw bytes (local path or s3:// URI).
	StoragePath string

	// State is the current processing state.
	State DocumentProcessingState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IngestionJob is the unit of work handed from the submitter to a worker.
type IngestionJob struct {
	DocumentID  string    `json:"document_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	StoragePath string    `json:"storage_path"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// SubmitRequest asks for a document to be ingested.
type SubmitRequest struct {
	UserID      string
	Name        string
	StoragePath string
}

// SubmitAck is returned immediately after a document is queued.
type SubmitAck struct {
	DocumentID string
	State      DocumentProcessingState
}
