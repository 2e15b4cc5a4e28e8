package mcp

import (
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Answer answers questions from ingested documents.
	Answer driving.AnswerService

	// Ingestion submits documents and reports their state. Optional.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
