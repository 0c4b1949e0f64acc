package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService runs semantic similarity queries over indexed meetings.
type SearchService struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
}

// NewSearchService creates a new search service.
// Both parameters are optional; without them every query reports the
// corresponding unavailable error.
func NewSearchService(embedder driven.EmbeddingService, vectors driven.VectorStore) *SearchService {
	return &SearchService{embedder: embedder, vectors: vectors}
}

// SemanticSearch returns up to topK meetings ordered by similarity.
// Scores are 1 - cosine distance. An empty query returns no results.
func (s *SearchService) SemanticSearch(
	ctx context.Context, query string, topK int, filters map[string]string,
) ([]domain.SearchResult, error) {
	logger.Section("Semantic Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if topK > domain.MaxTopK {
		return nil, fmt.Errorf("top_k must be between 1 and %d: %w", domain.MaxTopK, domain.ErrInvalidInput)
	}

	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.vectors == nil {
		return nil, domain.ErrVectorStoreUnavailable
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.vectors.Query(ctx, embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, domain.SearchResult{
			ID:          m.ID,
			Score:       1 - m.Distance,
			MatchedText: m.Document,
			Metadata:    m.Metadata,
		})
	}
	logger.Debug("Results: %d", len(results))
	return results, nil
}
