package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

func TestExtractMeetingID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid meeting URI", uri: "minutes://meetings/20250101-100000-abcd1234", expected: "20250101-100000-abcd1234"},
		{name: "invalid prefix", uri: "file://meetings/m1", expected: ""},
		{name: "nested path", uri: "minutes://meetings/m1/extra", expected: ""},
		{name: "listing URI", uri: "minutes://meetings", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractMeetingID(tt.uri))
		})
	}
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uri},
	}
}

func TestServer_handleMeetingsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil history service returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		result, err := server.handleMeetingsResource(ctx, makeReadResourceRequest("minutes://meetings"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("lists newest first", func(t *testing.T) {
		history := &mockHistoryService{
			meetings: []domain.CompactAnalysis{{
				ID:             "m1",
				Timestamp:      time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
				OriginalFile:   "standup.webm",
				SummaryPreview: "Daily standup",
			}},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: history})
		require.NoError(t, err)

		result, err := server.handleMeetingsResource(ctx, makeReadResourceRequest("minutes://meetings"))
		require.NoError(t, err)
		assert.True(t, history.gotOpts.Descending)
		assert.Equal(t, domain.SortByTimestamp, history.gotOpts.SortBy)
		assert.Equal(t, listLimit, history.gotOpts.Limit)
		assert.Contains(t, result.Contents[0].Text, "standup.webm")
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("disk error")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: history})
		require.NoError(t, err)

		_, err = server.handleMeetingsResource(ctx, makeReadResourceRequest("minutes://meetings"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing meetings")
	})
}

func TestServer_handleMeetingResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil history service returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, err = server.handleMeetingResource(ctx, makeReadResourceRequest("minutes://meetings/m1"))
		require.Error(t, err)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: &mockHistoryService{}})
		require.NoError(t, err)

		_, err = server.handleMeetingResource(ctx, makeReadResourceRequest("minutes://other/m1"))
		require.Error(t, err)
	})

	t.Run("returns the analysis", func(t *testing.T) {
		history := &mockHistoryService{
			analysis: &domain.MeetingAnalysis{
				ID:      "m1",
				Summary: "Quarterly planning",
				Topics:  []domain.AnalysisItem{domain.TextItem("roadmap")},
			},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: history})
		require.NoError(t, err)

		result, err := server.handleMeetingResource(ctx, makeReadResourceRequest("minutes://meetings/m1"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, "Quarterly planning")
		assert.Contains(t, result.Contents[0].Text, "roadmap")
	})

	t.Run("missing analysis is not found", func(t *testing.T) {
		history := &mockHistoryService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: history})
		require.NoError(t, err)

		_, err = server.handleMeetingResource(ctx, makeReadResourceRequest("minutes://meetings/m1"))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "loading meeting")
	})

	t.Run("returns error on load failure", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("corrupt")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, History: history})
		require.NoError(t, err)

		_, err = server.handleMeetingResource(ctx, makeReadResourceRequest("minutes://meetings/m1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loading meeting")
	})
}
