package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// maxSnippet bounds the matched text returned per search hit.
const maxSnippet = 500

// SearchInput is the input schema for the search_meetings tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"what to look for in past meetings"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of meetings to return (1-50, default 5)"`
}

// SearchOutput is the output schema for the search_meetings tool.
type SearchOutput struct {
	Query   string               `json:"query"`
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one matching meeting.
type SearchResultOutput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Timestamp   string  `json:"timestamp,omitempty"`
	MeetingType string  `json:"meeting_type,omitempty"`
	Text        string  `json:"text,omitempty"`
}

// AskInput is the input schema for the ask_meetings tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from meeting history"`
	SessionID string `json:"session_id,omitempty" jsonschema:"reuse to ask follow-up questions in the same conversation"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of meetings to ground the answer in (1-50, default 5)"`
}

// AskOutput is the output schema for the ask_meetings tool.
type AskOutput struct {
	Answer        string          `json:"answer"`
	Sources       []domain.Source `json:"sources"`
	ExpandedQuery string          `json:"expanded_query,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_meetings",
		Description: "Find past meetings semantically similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_meetings",
		Description: "Answer a question using the content of past meetings, citing sources",
	}, s.handleAsk)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Search.SemanticSearch(ctx, input.Query, input.TopK, nil)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			ID:          results[i].ID,
			Name:        results[i].Name(),
			Score:       results[i].Score,
			Timestamp:   results[i].Metadata[domain.MetaTimestamp],
			MeetingType: results[i].Metadata[domain.MetaMeetingType],
			Text:        snippet(results[i].MatchedText),
		}
	}

	return nil, output, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.RAG == nil {
		return nil, AskOutput{Answer: domain.NotConfiguredAnswer, Sources: []domain.Source{}}, nil
	}

	var (
		res *domain.ChatResult
		err error
	)
	if input.SessionID == "" {
		res, err = s.ports.RAG.Chat(ctx, input.Question, nil, input.TopK)
	} else {
		res, err = s.ports.RAG.Ask(ctx, input.SessionID, input.Question, input.TopK)
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:        res.Answer,
		Sources:       res.Sources,
		ExpandedQuery: res.ExpandedQuery,
		SessionID:     input.SessionID,
	}, nil
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= maxSnippet {
		return text
	}
	return string(r[:maxSnippet]) + "..."
}
