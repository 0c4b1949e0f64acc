package cli

import (
	"bytes"
	"context"
	"io"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

type mockHistory struct {
	items    []domain.CompactAnalysis
	analysis *domain.MeetingAnalysis
	err      error
	gotOpts  domain.ListOptions
	gotID    string
	gotName  string
}

func (m *mockHistory) Record(context.Context, *domain.MeetingAnalysis) error { return m.err }

func (m *mockHistory) Get(_ context.Context, id string) (*domain.MeetingAnalysis, error) {
	m.gotID = id
	return m.analysis, m.err
}

func (m *mockHistory) List(_ context.Context, opts domain.ListOptions) ([]domain.CompactAnalysis, error) {
	m.gotOpts = opts
	return m.items, m.err
}

func (m *mockHistory) FindByFilename(_ context.Context, name string) (*domain.MeetingAnalysis, error) {
	m.gotName = name
	return m.analysis, m.err
}

type mockSearch struct {
	results    []domain.SearchResult
	err        error
	gotQuery   string
	gotTopK    int
	gotFilters map[string]string
}

func (m *mockSearch) SemanticSearch(
	_ context.Context, query string, topK int, filters map[string]string,
) ([]domain.SearchResult, error) {
	m.gotQuery, m.gotTopK, m.gotFilters = query, topK, filters
	return m.results, m.err
}

type mockIndex struct {
	indexed  int
	count    int
	err      error
	gotForce bool
}

func (m *mockIndex) IndexOne(context.Context, *domain.MeetingAnalysis) (bool, error) {
	return true, m.err
}

func (m *mockIndex) IndexAll(_ context.Context, force bool) (int, error) {
	m.gotForce = force
	return m.indexed, m.err
}

func (m *mockIndex) Count(context.Context) (int, error) { return m.count, nil }

type mockIngest struct {
	analysis    *domain.MeetingAnalysis
	err         error
	gotName     string
	gotBody     string
	gotSize     int64
	gotLanguage string
}

func (m *mockIngest) Ingest(
	_ context.Context, filename string, r io.Reader, size int64, language string,
) (*domain.MeetingAnalysis, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.gotName, m.gotBody, m.gotSize, m.gotLanguage = filename, string(data), size, language
	return m.analysis, m.err
}

type mockRAG struct {
	result     *domain.ChatResult
	events     []domain.RAGEvent
	err        error
	gotQuery   string
	gotSession string
	gotTopK    int
	streamed   bool
}

func (m *mockRAG) Chat(
	_ context.Context, query string, _ []domain.ConversationTurn, topK int,
) (*domain.ChatResult, error) {
	m.gotQuery, m.gotTopK = query, topK
	return m.result, m.err
}

func (m *mockRAG) ChatStream(
	_ context.Context, query string, _ []domain.ConversationTurn, topK int,
) iter.Seq[domain.RAGEvent] {
	m.gotQuery, m.gotTopK, m.streamed = query, topK, true
	return m.stream()
}

func (m *mockRAG) Ask(_ context.Context, sessionID, query string, topK int) (*domain.ChatResult, error) {
	m.gotSession, m.gotQuery, m.gotTopK = sessionID, query, topK
	return m.result, m.err
}

func (m *mockRAG) AskStream(_ context.Context, sessionID, query string, topK int) iter.Seq[domain.RAGEvent] {
	m.gotSession, m.gotQuery, m.gotTopK, m.streamed = sessionID, query, topK, true
	return m.stream()
}

func (m *mockRAG) stream() iter.Seq[domain.RAGEvent] {
	return func(yield func(domain.RAGEvent) bool) {
		for _, ev := range m.events {
			if !yield(ev) {
				return
			}
		}
	}
}

type mockSettings struct {
	settings    domain.Settings
	set         map[string]any
	embedErr    error
	llmErr      error
	embedCalled bool
	llmCalled   bool
}

func (m *mockSettings) Get() domain.Settings { return m.settings }

func (m *mockSettings) Set(key string, value any) error {
	if m.set == nil {
		m.set = make(map[string]any)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettings) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettings) ValidateEmbeddingConfig() error {
	m.embedCalled = true
	return m.embedErr
}

func (m *mockSettings) ValidateLLMConfig() error {
	m.llmCalled = true
	return m.llmErr
}

// mockRunner blocks until its context ends; it serves as both the
// scheduler and the watcher.
type mockRunner struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockRunner) Start(ctx context.Context) error { return m.Run(ctx) }

func (m *mockRunner) Run(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockRunner) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockRunner) state() (started, stopped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}

func sampleAnalysis() *domain.MeetingAnalysis {
	return &domain.MeetingAnalysis{
		ID:           "20250301-093000-abcd1234",
		Timestamp:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		OriginalFile: "standup.webm",
		Summary:      "The team reviewed the Q4 budget.",
		Topics:       []domain.AnalysisItem{domain.TextItem("Budget")},
		ActionItems:  []domain.AnalysisItem{domain.ObjectItem(map[string]any{"task": "Send report", "owner": "Alice"})},
		Decisions:    []domain.AnalysisItem{domain.TextItem("Freeze hiring")},
		Metadata:     map[string]any{domain.MetaMeetingType: "Standup"},
	}
}

// setupTestServices installs the given services and restores the
// package state afterwards, including flag variables.
func setupTestServices(t *testing.T, svc Services) {
	t.Helper()
	if svc.History == nil {
		svc.History = &mockHistory{}
	}
	if svc.Search == nil {
		svc.Search = &mockSearch{}
	}
	useServices(&svc)
	t.Cleanup(func() {
		useServices(&Services{})
		resetFlags()
	})
}

func resetFlags() {
	searchLimit, searchType, searchJSON = domain.DefaultTopK, "", false
	askTopK, askSession, askStream, askJSON = domain.DefaultTopK, "", false, false
	indexForce = false
	historyType, historySort, historyDesc, historyLimit, historyJSON = "", string(domain.SortByTimestamp), true, 0, false
	analyzeLanguage, analyzeJSON = "", false
	mcpHTTPAddr = ""
	serveAddr, serveNoMCP, serveOrigins = "", false, nil
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
