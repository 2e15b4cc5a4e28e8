// Package mcp exposes document answers and ingestion to AI assistants over
// the Model Context Protocol.
package mcp

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")

// errIngestionUnavailable is returned by ingestion tools when no ingestion
// service is wired.
var errIngestionUnavailable = errors.New("mcp: ingestion is not available")
