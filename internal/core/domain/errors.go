package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no extractor handles the document type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the extractor produced no usable pages.
	ErrExtractionFailed = errors.New("extraction failed")

	// Provider Errors.

	// ErrProviderConfig indicates a provider is misconfigured (missing API key,
	// unknown model, rejected credentials). Never retried.
	ErrProviderConfig = errors.New("provider configuration error")

	// ErrProviderUnavailable indicates a provider failed its connectivity check.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderTimeout indicates a single provider attempt ran past its deadline.
	ErrProviderTimeout = errors.New("provider request timed out")

	// ErrDimensionMismatch indicates an embedding whose length differs from the
	// deployment's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Processing Errors.

	// ErrInvalidTransition indicates a document state change the lifecycle forbids,
	// such as leaving a terminal state.
	ErrInvalidTransition = errors.New("invalid processing state transition")

	// ErrQueueClosed indicates the ingestion queue no longer accepts or yields jobs.
	ErrQueueClosed = errors.New("ingestion queue closed")
)
