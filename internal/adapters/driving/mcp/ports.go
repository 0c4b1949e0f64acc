package mcp

import (
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Search ranks meetings by similarity to a query.
	Search driving.SearchService

	// RAG answers questions grounded in meeting history.
	RAG driving.RAGService

	// History reads stored analyses.
	History driving.HistoryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// RAG and History are optional; their tools and resources degrade.
	return nil
}
