package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func processing(stage ProcessingStage) DocumentProcessingState {
	return DocumentProcessingState{Status: StatusProcessing, Stage: stage}
}

func failed(stage ProcessingStage) DocumentProcessingState {
	return DocumentProcessingState{Status: StatusFailed, Stage: stage.Failed(), ErrorMessage: "boom"}
}

func TestProcessingStage_Failed(t *testing.T) {
	assert.Equal(t, ProcessingStage("failed_embedding"), StageEmbedding.Failed())
	assert.True(t, StageEmbedding.Failed().IsFailure())
	assert.False(t, StageEmbedding.IsFailure())
	assert.Equal(t, StageEmbedding.Failed(), StageEmbedding.Failed().Failed())
}

func TestProcessingStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestDocumentProcessingState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from DocumentProcessingState
		to   DocumentProcessingState
		want bool
	}{
		{"pending to downloading", PendingState(), processing(StageDownloading), true},
		{"pending skips to chunking", PendingState(), processing(StageChunking), false},
		{"downloading to extracting", processing(StageDownloading), processing(StageExtracting), true},
		{"extracting to extracting", processing(StageExtracting), processing(StageExtracting), true},
		{"extracting back to downloading", processing(StageExtracting), processing(StageDownloading), false},
		{"chunking skips embedding", processing(StageChunking), processing(StageStoring), false},
		{"storing to completed", processing(StageStoring), DocumentProcessingState{Status: StatusCompleted}, true},
		{"embedding to completed", processing(StageEmbedding), DocumentProcessingState{Status: StatusCompleted}, false},
		{"embedding to failed", processing(StageEmbedding), failed(StageEmbedding), true},
		{"pending to failed", PendingState(), failed(StageDownloading), true},
		{"failed without failure stage", processing(StageEmbedding), DocumentProcessingState{Status: StatusFailed, Stage: StageEmbedding}, false},
		{"completed is final", DocumentProcessingState{Status: StatusCompleted}, processing(StageDownloading), false},
		{"failed is final", failed(StageChunking), failed(StageChunking), false},
		{"back to pending", processing(StageDownloading), PendingState(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPipelineStages_Order(t *testing.T) {
	stages := PipelineStages()

	assert.Equal(t, []ProcessingStage{
		StageDownloading, StageExtracting, StageChunking, StageEmbedding, StageStoring,
	}, stages)
}
