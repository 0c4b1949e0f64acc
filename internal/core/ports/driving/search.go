package driving

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// SearchService provides semantic search over indexed meetings.
type SearchService interface {
	// SemanticSearch returns up to topK meetings ranked by similarity.
	// An empty query returns an empty result, not an error.
	SemanticSearch(ctx context.Context, query string, topK int, filters map[string]string) ([]domain.SearchResult, error)
}

// IndexService maintains the semantic index of meeting history.
type IndexService interface {
	// IndexOne renders, embeds and upserts one analysis.
	// Returns false when the analysis has no content and was skipped.
	IndexOne(ctx context.Context, analysis *domain.MeetingAnalysis) (bool, error)

	// IndexAll indexes every stored analysis, skipping already indexed IDs unless force is set.
	// Returns the number of newly indexed records.
	IndexAll(ctx context.Context, force bool) (int, error)

	// Count returns the number of indexed records.
	Count(ctx context.Context) (int, error)
}
