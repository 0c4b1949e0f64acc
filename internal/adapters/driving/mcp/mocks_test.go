package mcp

import (
	"context"
	"iter"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	gotQuery string
	gotTopK  int
}

func (m *mockSearchService) SemanticSearch(
	_ context.Context,
	query string,
	topK int,
	_ map[string]string,
) ([]domain.SearchResult, error) {
	m.gotQuery, m.gotTopK = query, topK
	return m.results, m.err
}

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	result *domain.ChatResult
	err    error

	calledChat bool
	calledAsk  bool
	gotSession string
}

func (m *mockRAGService) Chat(
	_ context.Context, _ string, _ []domain.ConversationTurn, _ int,
) (*domain.ChatResult, error) {
	m.calledChat = true
	return m.result, m.err
}

func (m *mockRAGService) ChatStream(
	_ context.Context, _ string, _ []domain.ConversationTurn, _ int,
) iter.Seq[domain.RAGEvent] {
	return func(func(domain.RAGEvent) bool) {}
}

func (m *mockRAGService) Ask(_ context.Context, sessionID, _ string, _ int) (*domain.ChatResult, error) {
	m.calledAsk = true
	m.gotSession = sessionID
	return m.result, m.err
}

func (m *mockRAGService) AskStream(_ context.Context, _, _ string, _ int) iter.Seq[domain.RAGEvent] {
	return func(func(domain.RAGEvent) bool) {}
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	meetings []domain.CompactAnalysis
	analysis *domain.MeetingAnalysis
	err      error

	gotOpts domain.ListOptions
}

func (m *mockHistoryService) Record(_ context.Context, _ *domain.MeetingAnalysis) error {
	return m.err
}

func (m *mockHistoryService) Get(_ context.Context, _ string) (*domain.MeetingAnalysis, error) {
	return m.analysis, m.err
}

func (m *mockHistoryService) List(_ context.Context, opts domain.ListOptions) ([]domain.CompactAnalysis, error) {
	m.gotOpts = opts
	return m.meetings, m.err
}

func (m *mockHistoryService) FindByFilename(_ context.Context, _ string) (*domain.MeetingAnalysis, error) {
	return m.analysis, m.err
}
