package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

func analysis(id, summary string) *domain.MeetingAnalysis {
	return &domain.MeetingAnalysis{
		ID:           id,
		Timestamp:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		OriginalFile: id + ".mp3",
		Summary:      summary,
		Metadata:     map[string]any{domain.MetaMeetingType: "planning"},
	}
}

func TestRenderDocument(t *testing.T) {
	a := &domain.MeetingAnalysis{
		Summary: "Budget review",
		Topics:  []domain.AnalysisItem{domain.TextItem("costs"), domain.TextItem("hiring")},
		ActionItems: []domain.AnalysisItem{
			domain.ObjectItem(map[string]any{"task": "Send report", "assignee": "Dana"}),
		},
		Decisions: []domain.AnalysisItem{
			domain.ObjectItem(map[string]any{"decision": "Freeze travel"}),
		},
	}

	assert.Equal(t,
		"Summary: Budget review\nTopics: costs, hiring\nActions: Send report — Dana\nDecisions: Freeze travel",
		RenderDocument(a))
}

func TestRenderDocument_SkipsBlankSections(t *testing.T) {
	a := &domain.MeetingAnalysis{
		Topics: []domain.AnalysisItem{domain.TextItem("  "), domain.TextItem("roadmap")},
	}
	assert.Equal(t, "Topics: roadmap", RenderDocument(a))
	assert.Equal(t, "", RenderDocument(&domain.MeetingAnalysis{}))
}

func TestDocumentMetadata(t *testing.T) {
	a := analysis("m1", "x")
	meta := DocumentMetadata(a)

	assert.Equal(t, "m1", meta[domain.MetaMeetingID])
	assert.Equal(t, "m1.mp3", meta[domain.MetaOriginalFile])
	assert.Equal(t, "2024-03-01T10:00:00Z", meta[domain.MetaTimestamp])
	assert.Equal(t, "planning", meta[domain.MetaMeetingType])
	assert.NotContains(t, meta, domain.MetaLanguage)

	a.Metadata[domain.MetaLanguage] = "de"
	assert.Equal(t, "de", DocumentMetadata(a)[domain.MetaLanguage])
}

func TestIndexService_IndexAndSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	history := newFakeHistoryStore()
	embedder := &bagEmbedder{}
	vectors := newFakeVectorStore()
	index := NewIndexService(history, embedder, vectors, 0)
	search := NewSearchService(embedder, vectors)

	ok, err := index.IndexOne(ctx, analysis("X", "Budget planning for Q4"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = index.IndexOne(ctx, analysis("Y", "Office party logistics and catering"))
	require.NoError(t, err)

	results, err := search.SemanticSearch(ctx, "Q4 budget", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "X", results[0].ID)
	assert.Greater(t, results[0].Score, 0.5)
	assert.Equal(t, "X.mp3", results[0].Name())
	assert.Contains(t, results[0].MatchedText, "Budget planning for Q4")
}

func TestIndexService_IndexOne_Empty(t *testing.T) {
	vectors := newFakeVectorStore()
	index := NewIndexService(newFakeHistoryStore(), &bagEmbedder{}, vectors, 0)

	ok, err := index.IndexOne(context.Background(), &domain.MeetingAnalysis{ID: "e"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, vectors.upserts)
}

func TestIndexService_IndexOne_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewIndexService(newFakeHistoryStore(), nil, newFakeVectorStore(), 0).IndexOne(ctx, analysis("a", "x"))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = NewIndexService(newFakeHistoryStore(), &bagEmbedder{}, nil, 0).IndexOne(ctx, analysis("a", "x"))
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)

	_, err = NewIndexService(newFakeHistoryStore(), &bagEmbedder{}, newFakeVectorStore(), 0).
		IndexOne(ctx, &domain.MeetingAnalysis{Summary: "no id"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexService_IndexAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	history := newFakeHistoryStore()
	for i := range 7 {
		history.put(analysis(fmt.Sprintf("m%d", i), fmt.Sprintf("Meeting number %d", i)))
	}
	history.put(&domain.MeetingAnalysis{ID: "empty"})
	history.loadErr["corrupt"] = errors.New("invalid character")

	vectors := newFakeVectorStore()
	index := NewIndexService(history, &bagEmbedder{}, vectors, 3)

	n, err := index.IndexAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 3, vectors.upserts)

	n, err = index.IndexAll(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = index.IndexAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestIndexService_IndexAll_BatchFallback(t *testing.T) {
	ctx := context.Background()
	history := newFakeHistoryStore()
	history.put(analysis("good", "Quarterly planning"))
	history.put(analysis("bad", "POISON record"))

	embedder := &bagEmbedder{batchErr: errors.New("batch endpoint down"), failOn: "POISON"}
	vectors := newFakeVectorStore()
	index := NewIndexService(history, embedder, vectors, 10)

	n, err := index.IndexAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	have, _ := vectors.Has(ctx, []string{"good", "bad"})
	assert.True(t, have["good"])
	assert.False(t, have["bad"])
}

// wideEmbedder returns one extra dimension for texts containing marker.
type wideEmbedder struct {
	bagEmbedder
	marker string
}

func (e *wideEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.bagEmbedder.Embed(ctx, text)
	if err == nil && strings.Contains(text, e.marker) {
		v = append(v, 1)
	}
	return v, err
}

func (e *wideEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func TestIndexService_IndexAll_DimensionMismatchSkipsOnlyThatRecord(t *testing.T) {
	ctx := context.Background()
	history := newFakeHistoryStore()
	history.put(analysis("a", "Alpha review"))
	history.put(analysis("b", "WIDE model output"))
	history.put(analysis("c", "Gamma retro"))

	vectors := newFakeVectorStore()
	vectors.dims = bagDims
	index := NewIndexService(history, &wideEmbedder{marker: "WIDE"}, vectors, 10)

	n, err := index.IndexAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	have, _ := vectors.Has(ctx, []string{"a", "b", "c"})
	assert.Equal(t, map[string]bool{"a": true, "c": true}, have)
}

func TestIndexService_IndexAll_UpsertFailureSkipsBatch(t *testing.T) {
	history := newFakeHistoryStore()
	history.put(analysis("a", "Alpha"))
	vectors := newFakeVectorStore()
	vectors.upsertErr = errors.New("disk full")

	n, err := NewIndexService(history, &bagEmbedder{}, vectors, 10).IndexAll(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexService_IndexAll_Cancelled(t *testing.T) {
	history := newFakeHistoryStore()
	history.put(analysis("a", "Alpha"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexService(history, &bagEmbedder{}, newFakeVectorStore(), 10).IndexAll(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexService_Remove(t *testing.T) {
	ctx := context.Background()
	vectors := newFakeVectorStore()
	index := NewIndexService(newFakeHistoryStore(), &bagEmbedder{}, vectors, 0)
	_, err := index.IndexOne(ctx, analysis("a", "Alpha"))
	require.NoError(t, err)

	require.NoError(t, index.Remove(ctx, "a"))
	count, _ := index.Count(ctx)
	assert.Zero(t, count)
}
