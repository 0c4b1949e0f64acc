package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())

	svc = NewEmbeddingService(Config{Model: "nomic-embed-text"})
	assert.Equal(t, 768, svc.Dimensions())

	svc = NewEmbeddingService(Config{Model: "mine", Dimensions: 12})
	assert.Equal(t, 12, svc.Dimensions())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)

		resp := embedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i), 0.5})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}, {2, 0.5}}, vecs)

	vec, err := svc.Embed(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)

	vecs, err = svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1]]}`))
	}))
	defer server.Close()

	_, err := NewEmbeddingService(Config{BaseURL: server.URL}).EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 embeddings for 2 inputs")
}

func TestEmbed_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"all-minilm\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := NewEmbeddingService(Config{BaseURL: server.URL}).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try pulling it first")
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestPing_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewEmbeddingService(Config{BaseURL: url}).Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
