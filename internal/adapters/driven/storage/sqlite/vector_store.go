package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// historyCollection names the single collection holding meeting embeddings.
const historyCollection = "meeting_history"

// vectorStore implements driven.VectorStore.
//
// Metadata filters run in SQL via json_extract; ranking is a linear cosine
// scan over the remaining rows, which is adequate for a personal archive.
type vectorStore struct {
	store      *Store
	collection string
}

var _ driven.VectorStore = (*vectorStore)(nil)

// dimensions returns the bound collection width, or 0 before the first upsert.
func (s *vectorStore) dimensions(ctx context.Context, q queryer) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx,
		"SELECT dimensions FROM vector_collection WHERE name = ?", s.collection).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection width: %w", err)
	}
	return dims, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Upsert inserts or replaces documents in one transaction.
func (s *vectorStore) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dims, err := s.dimensions(ctx, tx)
	if err != nil {
		return err
	}
	if dims == 0 {
		dims = len(docs[0].Embedding)
		if dims == 0 {
			return fmt.Errorf("empty embedding: %w", domain.ErrInvalidInput)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vector_collection (name, dimensions, distance, created_at) VALUES (?, ?, 'cosine', ?)",
			s.collection, dims, formatTime(time.Now())); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO meeting_vectors (id, document, metadata, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, doc := range docs {
		if doc.MeetingID == "" {
			return fmt.Errorf("document without id: %w", domain.ErrInvalidInput)
		}
		if len(doc.Embedding) != dims {
			return fmt.Errorf("%s has %d dimensions, collection has %d: %w",
				doc.MeetingID, len(doc.Embedding), dims, domain.ErrDimensionMismatch)
		}
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", doc.MeetingID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.MeetingID, doc.Text, string(metaJSON), encodeVector(doc.Embedding), now); err != nil {
			return fmt.Errorf("upserting %s: %w", doc.MeetingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// whereClause turns equality filters into json_extract conditions.
// Keys are sorted so the generated SQL is stable.
func whereClause(where map[string]string) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		if k == "" || strings.ContainsAny(k, `"\`) {
			return "", nil, fmt.Errorf("filter key %q: %w", k, domain.ErrInvalidInput)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		conds = append(conds, "json_extract(metadata, ?) = ?")
		args = append(args, `$."`+k+`"`, where[k])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Query returns the topK nearest documents, nearest first. Ties order by id.
func (s *vectorStore) Query(
	ctx context.Context, embedding []float32, topK int, where map[string]string,
) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return []domain.VectorMatch{}, nil
	}

	dims, err := s.dimensions(ctx, s.store.db)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []domain.VectorMatch{}, nil
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("query has %d dimensions, collection has %d: %w",
			len(embedding), dims, domain.ErrDimensionMismatch)
	}

	clause, args, err := whereClause(where)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, document, metadata, embedding FROM meeting_vectors"+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.VectorMatch, 0, topK)
	for rows.Next() {
		var (
			m        domain.VectorMatch
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&m.ID, &m.Document, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
		}
		m.Distance = domain.CosineDistance(embedding, decodeVector(blob))
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
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
func (s *vectorStore) Has(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id FROM meeting_vectors WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("checking vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vector id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// Count returns the number of stored documents.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM meeting_vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Delete removes a document.
func (s *vectorStore) Delete(ctx context.Context, id string) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM meeting_vectors WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting vector %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (s *vectorStore) Close() error {
	return nil
}
