package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

func sampleAnswer() *domain.ChatResult {
	return &domain.ChatResult{
		Answer: "Alice owns the Aurora project [1].",
		Sources: []domain.Source{
			{ID: "m1", Name: "aurora-kickoff.m4a", Score: 0.91, Timestamp: "2025-02-10T14:00:00Z"},
		},
		ExpandedQuery: "owner of project Aurora",
	}
}

func TestAskCmd_NotConfigured(t *testing.T) {
	out, err := execute(t, "ask", "who owns Aurora?")
	require.NoError(t, err)
	assert.Contains(t, out, domain.NotConfiguredAnswer)
}

func TestAskCmd_Stateless(t *testing.T) {
	rag := &mockRAG{result: sampleAnswer()}
	setupTestServices(t, Services{RAG: rag})

	out, err := execute(t, "ask", "-n", "8", "who owns Aurora?")
	require.NoError(t, err)

	assert.Equal(t, "who owns Aurora?", rag.gotQuery)
	assert.Equal(t, 8, rag.gotTopK)
	assert.Empty(t, rag.gotSession)
	assert.Contains(t, out, "Alice owns the Aurora project [1].")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[1] aurora-kickoff.m4a (0.91) 2025-02-10T14:00:00Z")
}

func TestAskCmd_Session(t *testing.T) {
	rag := &mockRAG{result: sampleAnswer()}
	setupTestServices(t, Services{RAG: rag})

	_, err := execute(t, "ask", "--session", "s1", "and the budget?")
	require.NoError(t, err)
	assert.Equal(t, "s1", rag.gotSession)
	assert.False(t, rag.streamed)
}

func TestAskCmd_Stream(t *testing.T) {
	rag := &mockRAG{events: []domain.RAGEvent{
		{Kind: domain.RAGEventSources, Sources: sampleAnswer().Sources},
		{Kind: domain.RAGEventChunk, Chunk: "Alice "},
		{Kind: domain.RAGEventChunk, Chunk: "owns it."},
	}}
	setupTestServices(t, Services{RAG: rag})

	out, err := execute(t, "ask", "--stream", "--session", "s2", "who?")
	require.NoError(t, err)

	assert.True(t, rag.streamed)
	assert.Equal(t, "s2", rag.gotSession)
	assert.Contains(t, out, "Alice owns it.\n")
	assert.Contains(t, out, "aurora-kickoff.m4a")
}

func TestAskCmd_StreamError(t *testing.T) {
	rag := &mockRAG{events: []domain.RAGEvent{
		{Kind: domain.RAGEventSources},
		{Kind: domain.RAGEventError, Err: &domain.RateLimitError{Provider: "openai"}},
	}}
	setupTestServices(t, Services{RAG: rag})

	_, err := execute(t, "ask", "--stream", "who?")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestAskCmd_ErrorIsWrapped(t *testing.T) {
	setupTestServices(t, Services{RAG: &mockRAG{err: domain.ErrGenerationFailed}})

	_, err := execute(t, "ask", "who?")
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestAskCmd_NoSourcesOmitsSection(t *testing.T) {
	setupTestServices(t, Services{RAG: &mockRAG{result: &domain.ChatResult{Answer: domain.NoResultsAnswer}}})

	out, err := execute(t, "ask", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, domain.NoResultsAnswer)
	assert.NotContains(t, out, "Sources:")
}
