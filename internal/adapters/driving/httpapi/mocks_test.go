package httpapi

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
)

type mockHistory struct {
	items    []domain.CompactAnalysis
	analysis *domain.MeetingAnalysis
	err      error
	gotOpts  domain.ListOptions
	gotName  string
}

func (m *mockHistory) Record(context.Context, *domain.MeetingAnalysis) error { return m.err }

func (m *mockHistory) Get(context.Context, string) (*domain.MeetingAnalysis, error) {
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

func (m *mockIndex) Count(context.Context) (int, error) { return m.count, m.err }

type mockIngest struct {
	analysis    *domain.MeetingAnalysis
	err         error
	gotName     string
	gotBody     string
	gotLanguage string
}

func (m *mockIngest) Ingest(
	_ context.Context, filename string, r io.Reader, _ int64, language string,
) (*domain.MeetingAnalysis, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.gotName, m.gotBody, m.gotLanguage = filename, string(data), language
	return m.analysis, m.err
}

type mockRAG struct {
	result     *domain.ChatResult
	events     []domain.RAGEvent
	err        error
	gotSession string
	gotHistory []domain.ConversationTurn
	gotTopK    int
}

func (m *mockRAG) Chat(
	_ context.Context, _ string, history []domain.ConversationTurn, topK int,
) (*domain.ChatResult, error) {
	m.gotHistory, m.gotTopK = history, topK
	return m.result, m.err
}

func (m *mockRAG) ChatStream(
	_ context.Context, _ string, history []domain.ConversationTurn, _ int,
) iter.Seq[domain.RAGEvent] {
	m.gotHistory = history
	return m.stream()
}

func (m *mockRAG) Ask(_ context.Context, sessionID, _ string, topK int) (*domain.ChatResult, error) {
	m.gotSession, m.gotTopK = sessionID, topK
	return m.result, m.err
}

func (m *mockRAG) AskStream(_ context.Context, sessionID, _ string, _ int) iter.Seq[domain.RAGEvent] {
	m.gotSession = sessionID
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

type mockConversations struct {
	turns   []domain.ConversationTurn
	cleared string
}

func (m *mockConversations) History(string) []domain.ConversationTurn { return m.turns }

func (m *mockConversations) Clear(id string) { m.cleared = id }

func (m *mockConversations) Sessions() []string { return []string{"s1"} }

// fakeTranscription echoes each pushed chunk back as a one-segment update.
type fakeTranscription struct {
	unavailable bool
	// holdFinal makes Stop return without emitting the final transcript.
	holdFinal bool

	mu      sync.Mutex
	format  string
	session *fakeSession
}

func (f *fakeTranscription) Available() bool { return !f.unavailable }

func (f *fakeTranscription) Status() domain.ModelStatus {
	return domain.ModelStatus{STT: "loaded", Diarizer: "disabled"}
}

func (f *fakeTranscription) Start(_ context.Context, format string) (driving.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.format = format
	f.session = &fakeSession{id: "sess-1", events: make(chan domain.TranscriptEvent, 16), holdFinal: f.holdFinal}
	return f.session, nil
}

func (f *fakeTranscription) last() (string, *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format, f.session
}

type fakeSession struct {
	id     string
	events chan domain.TranscriptEvent

	mu         sync.Mutex
	chunks     int
	transcript string
	languages  []string
	closed     bool
	holdFinal  bool
	stopped    bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Events() <-chan domain.TranscriptEvent { return s.events }

func (s *fakeSession) Push(audio []byte, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stopped {
		return domain.ErrSessionNotFound
	}
	s.chunks++
	s.transcript += string(audio)
	s.languages = append(s.languages, language)
	s.events <- domain.NewUpdateEvent(s.chunks, []domain.SpeakerLabeledSegment{
		{Speaker: domain.FallbackSpeaker, Text: s.transcript, Start: 0, End: float64(s.chunks)},
	})
	return nil
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionNotFound
	}
	if s.holdFinal {
		s.stopped = true
		return nil
	}
	s.events <- domain.NewFinalEvent("[" + domain.FallbackSpeaker + "] " + s.transcript)
	s.closed = true
	close(s.events)
	return nil
}

func (s *fakeSession) pushedLanguages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.languages...)
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// newTestHandler builds the router. History and Search default to empty mocks.
func newTestHandler(t *testing.T, svc Services) http.Handler {
	t.Helper()
	if svc.History == nil {
		svc.History = &mockHistory{}
	}
	if svc.Search == nil {
		svc.Search = &mockSearch{}
	}
	s, err := New(svc, Config{MaxUploadBytes: 1 << 20})
	require.NoError(t, err)
	return s.Handler()
}

// do serves one request synchronously.
func do(h http.Handler, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
