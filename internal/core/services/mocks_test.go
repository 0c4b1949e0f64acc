package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// --- speech ---

// fakeTranscriber returns words produced by fn for each call.
type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	paths []string
	opts  []domain.TranscribeOptions
	fn    func(call int, path string) (*domain.Transcription, error)
}

func (f *fakeTranscriber) Transcribe(
	_ context.Context, path string, opts domain.TranscribeOptions,
) (*domain.Transcription, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.paths = append(f.paths, path)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return f.fn(call, path)
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDiarizer returns segments produced by fn for each call.
type fakeDiarizer struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]domain.DiarizationSegment, error)
}

func (f *fakeDiarizer) Diarize(_ context.Context, _ string) ([]domain.DiarizationSegment, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeDiarizer) Name() string { return "fake-diarizer" }

func (f *fakeDiarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// words builds n one-second words "w0 w1 ...".
func words(n int) []domain.WordSegment {
	out := make([]domain.WordSegment, n)
	for i := range out {
		out[i] = domain.WordSegment{
			Text:  " w" + string(rune('a'+i%26)),
			Start: float64(i),
			End:   float64(i) + 0.8,
		}
	}
	return out
}

func transcriberLoader(t driven.Transcriber) Loader[driven.Transcriber] {
	return func(context.Context) (driven.Transcriber, error) { return t, nil }
}

func diarizerLoader(d driven.Diarizer) Loader[driven.Diarizer] {
	return func(context.Context) (driven.Diarizer, error) { return d, nil }
}

// --- spool ---

// memSpool keeps spooled audio in memory.
type memSpool struct {
	mu        sync.Mutex
	files     map[string][]byte
	next      int
	removeErr error
	removed   []string
}

func newMemSpool() *memSpool {
	return &memSpool{files: make(map[string][]byte)}
}

func (s *memSpool) Create(sessionID, format string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	path := filepath.Join("spool", sessionID+"-"+strconv.Itoa(s.next)+"."+format)
	s.files[path] = nil
	return path, nil
}

func (s *memSpool) Append(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return os.ErrNotExist
	}
	s.files[path] = append(s.files[path], data...)
	return nil
}

func (s *memSpool) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	delete(s.files, path)
	return s.removeErr
}

func (s *memSpool) size(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files[path])
}

func (s *memSpool) open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// --- embeddings and vectors ---

const bagDims = 512

// bagEmbedder hashes lower-cased word tokens into a fixed-width count vector,
// so texts sharing words are close under cosine distance.
type bagEmbedder struct {
	mu       sync.Mutex
	calls    int
	batchErr error
	failOn   string
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (e *bagEmbedder) vector(text string) []float32 {
	v := make([]float32, bagDims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%bagDims]++
	}
	return v
}

func (e *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding failed")
	}
	return e.vector(text), nil
}

func (e *bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *bagEmbedder) Dimensions() int           { return bagDims }
func (e *bagEmbedder) ModelName() string         { return "bag-of-words" }
func (e *bagEmbedder) Ping(context.Context) error { return nil }
func (e *bagEmbedder) Close() error              { return nil }

// fakeVectorStore is a linear-scan cosine store.
type fakeVectorStore struct {
	mu        sync.Mutex
	docs      map[string]domain.IndexedDocument
	upserts   int
	upsertErr error
	queryErr  error
	lastWhere map[string]string
	// dims rejects any upsert batch holding an embedding of another width.
	dims int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{docs: make(map[string]domain.IndexedDocument)}
}

func (s *fakeVectorStore) Upsert(_ context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, d := range docs {
		if s.dims > 0 && len(d.Embedding) != s.dims {
			return fmt.Errorf("%s: %w", d.MeetingID, domain.ErrDimensionMismatch)
		}
	}
	s.upserts++
	for _, d := range docs {
		s.docs[d.MeetingID] = d
	}
	return nil
}

func (s *fakeVectorStore) Query(
	_ context.Context, embedding []float32, topK int, where map[string]string,
) ([]domain.VectorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWhere = where
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.VectorMatch
	for id, d := range s.docs {
		if !domain.MatchesWhere(d.Metadata, where) {
			continue
		}
		out = append(out, domain.VectorMatch{
			ID:       id,
			Document: d.Text,
			Metadata: d.Metadata,
			Distance: domain.CosineDistance(embedding, d.Embedding),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *fakeVectorStore) Has(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *fakeVectorStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs), nil
}

func (s *fakeVectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *fakeVectorStore) Close() error { return nil }

// --- history ---

// fakeHistoryStore keeps analyses in a map.
type fakeHistoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.MeetingAnalysis
	order   []string
	loadErr map[string]error
	saveErr error
	dir     string
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{
		records: make(map[string]*domain.MeetingAnalysis),
		loadErr: make(map[string]error),
	}
}

func (h *fakeHistoryStore) Save(a *domain.MeetingAnalysis) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saveErr != nil {
		return h.saveErr
	}
	if _, ok := h.records[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *a
	h.records[a.ID] = &cp
	h.order = append(h.order, a.ID)
	return nil
}

func (h *fakeHistoryStore) Load(id string) (*domain.MeetingAnalysis, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.loadErr[id]; err != nil {
		return nil, err
	}
	a, ok := h.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (h *fakeHistoryStore) List(opts domain.ListOptions) ([]domain.CompactAnalysis, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.CompactAnalysis, 0, len(h.order))
	for _, id := range h.order {
		c := h.records[id].Compact()
		if opts.MeetingType != "" && c.MeetingType != opts.MeetingType {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *fakeHistoryStore) FindByFilename(name string) (*domain.MeetingAnalysis, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.order) - 1; i >= 0; i-- {
		a := h.records[h.order[i]]
		if strings.Contains(strings.ToLower(a.OriginalFile), strings.ToLower(name)) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (h *fakeHistoryStore) IDs() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := append([]string(nil), h.order...)
	for id := range h.loadErr {
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *fakeHistoryStore) Dir() string { return h.dir }

// put stores an analysis directly, bypassing the service.
func (h *fakeHistoryStore) put(a *domain.MeetingAnalysis) {
	if err := h.Save(a); err != nil {
		panic(err)
	}
}

// --- llm ---

// fakeLLM answers Generate with generateFn and Stream with chunks.
type fakeLLM struct {
	mu         sync.Mutex
	prompts    []string
	generateFn func(prompt string) (string, error)
	chunks     []string
	streamErrs []error
	streams    int
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()
	if l.generateFn == nil {
		return "ok", nil
	}
	return l.generateFn(prompt)
}

func (l *fakeLLM) Stream(_ context.Context, prompt string, _ driven.GenerateOptions) iter.Seq2[string, error] {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	attempt := l.streams
	l.streams++
	l.mu.Unlock()

	return func(yield func(string, error) bool) {
		if attempt < len(l.streamErrs) && l.streamErrs[attempt] != nil {
			yield("", l.streamErrs[attempt])
			return
		}
		for _, c := range l.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (l *fakeLLM) ModelName() string         { return "fake-llm" }
func (l *fakeLLM) Ping(context.Context) error { return nil }
func (l *fakeLLM) Close() error              { return nil }

func (l *fakeLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func (l *fakeLLM) prompt(i int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prompts[i]
}

// --- analysis ---

// fakeExtractor returns a fixed analysis built from the transcript.
type fakeExtractor struct {
	transcripts []string
	meta        []driven.AnalysisMeta
	err         error
}

func (f *fakeExtractor) Extract(
	_ context.Context, transcript string, meta driven.AnalysisMeta,
) (*domain.MeetingAnalysis, error) {
	f.transcripts = append(f.transcripts, transcript)
	f.meta = append(f.meta, meta)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.MeetingAnalysis{
		Summary:  "Summary of " + meta.OriginalFile,
		Topics:   []domain.AnalysisItem{domain.TextItem("planning")},
		Metadata: map[string]any{domain.MetaMeetingType: "standup"},
	}, nil
}

var (
	_ driven.Transcriber       = (*fakeTranscriber)(nil)
	_ driven.Diarizer          = (*fakeDiarizer)(nil)
	_ driven.AudioSpool        = (*memSpool)(nil)
	_ driven.EmbeddingService  = (*bagEmbedder)(nil)
	_ driven.VectorStore       = (*fakeVectorStore)(nil)
	_ driven.HistoryStore      = (*fakeHistoryStore)(nil)
	_ driven.LLMService        = (*fakeLLM)(nil)
	_ driven.AnalysisExtractor = (*fakeExtractor)(nil)
)
