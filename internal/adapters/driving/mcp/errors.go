// Package mcp provides an MCP (Model Context Protocol) server adapter for Minutes.
// It lets AI assistants search past meetings and ask questions about them.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
