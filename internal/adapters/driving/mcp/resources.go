package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

const (
	uriScheme = "minutes://"

	// listLimit bounds the meetings resource listing.
	listLimit = 200
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "meetings",
		Name:        "meetings",
		Description: "Recent meeting analyses, newest first",
		MIMEType:    "application/json",
	}, s.handleMeetingsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "meetings/{meetingId}",
		Name:        "meeting-analysis",
		Description: "Full analysis of one meeting, including its transcript",
		MIMEType:    "application/json",
	}, s.handleMeetingResource)
}

// handleMeetingsResource lists stored analyses.
func (s *Server) handleMeetingsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	meetings, err := s.ports.History.List(ctx, domain.ListOptions{
		SortBy:     domain.SortByTimestamp,
		Descending: true,
		Limit:      listLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	if meetings == nil {
		meetings = []domain.CompactAnalysis{}
	}

	data, err := json.MarshalIndent(meetings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling meetings: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleMeetingResource returns one stored analysis.
func (s *Server) handleMeetingResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractMeetingID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	analysis, err := s.ports.History.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading meeting: %w", err)
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling meeting: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractMeetingID extracts the ID from a URI like minutes://meetings/{meetingId}.
func extractMeetingID(uri string) string {
	const prefix = uriScheme + "meetings/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
