package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Queries scan every document.
type VectorStore struct {
	mu   sync.RWMutex
	docs map[string]domain.IndexedDocument
	dims int
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		docs: make(map[string]domain.IndexedDocument),
	}
}

// Upsert inserts or replaces documents.
func (s *VectorStore) Upsert(_ context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	for _, d := range docs {
		if d.MeetingID == "" {
			return fmt.Errorf("upsert without id: %w", domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(d.Embedding)
		}
		if len(d.Embedding) != dims {
			return fmt.Errorf("upsert %s: got %d dimensions, want %d: %w",
				d.MeetingID, len(d.Embedding), dims, domain.ErrDimensionMismatch)
		}
	}

	s.dims = dims
	for _, d := range docs {
		d.Embedding = slices.Clone(d.Embedding)
		d.Metadata = maps.Clone(d.Metadata)
		s.docs[d.MeetingID] = d
	}
	return nil
}

// Query returns the topK nearest documents by cosine distance.
func (s *VectorStore) Query(
	_ context.Context, embedding []float32, topK int, where map[string]string,
) ([]domain.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.docs) == 0 {
		return []domain.VectorMatch{}, nil
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query: got %d dimensions, want %d: %w",
			len(embedding), s.dims, domain.ErrDimensionMismatch)
	}

	matches := make([]domain.VectorMatch, 0, len(s.docs))
	for id, d := range s.docs {
		if !domain.MatchesWhere(d.Metadata, where) {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ID:       id,
			Document: d.Text,
			Metadata: maps.Clone(d.Metadata),
			Distance: domain.CosineDistance(embedding, d.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Has reports which ids are stored.
func (s *VectorStore) Has(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// Count returns the number of stored documents.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Delete removes a document.
func (s *VectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}
