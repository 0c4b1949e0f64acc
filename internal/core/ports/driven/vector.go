package driven

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// VectorStore persists meeting embeddings and answers cosine-similarity queries.
//
// The collection width is bound by the first upsert; later records of a
// different width fail with domain.ErrDimensionMismatch. Implementations
// must allow concurrent upserts and queries.
type VectorStore interface {
	// Upsert inserts or replaces documents keyed by MeetingID.
	Upsert(ctx context.Context, docs []domain.IndexedDocument) error

	// Query returns up to topK nearest documents by cosine distance, nearest first.
	// Every key of where must equal the stored metadata value.
	Query(ctx context.Context, embedding []float32, topK int, where map[string]string) ([]domain.VectorMatch, error)

	// Has reports which of ids are already stored.
	Has(ctx context.Context, ids []string) (map[string]bool, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Delete removes a document. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
