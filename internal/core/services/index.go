package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService renders meeting analyses into searchable documents and keeps
// the vector store in step with the history store.
type IndexService struct {
	history   driven.HistoryStore
	embedder  driven.EmbeddingService
	vectors   driven.VectorStore
	batchSize int
}

// NewIndexService creates an index service.
// embedder and vectors may be nil, in which case indexing reports the
// corresponding unavailable error.
func NewIndexService(
	history driven.HistoryStore,
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	batchSize int,
) *IndexService {
	if batchSize <= 0 {
		batchSize = domain.DefaultIndexBatchSize
	}
	return &IndexService{
		history:   history,
		embedder:  embedder,
		vectors:   vectors,
		batchSize: batchSize,
	}
}

// RenderDocument builds the searchable text of an analysis from its
// non-empty sections. Returns "" when every section is blank.
func RenderDocument(a *domain.MeetingAnalysis) string {
	var parts []string
	if s := strings.TrimSpace(a.Summary); s != "" {
		parts = append(parts, "Summary: "+s)
	}
	sections := []struct {
		label string
		items []domain.AnalysisItem
	}{
		{"Topics", a.Topics},
		{"Actions", a.ActionItems},
		{"Decisions", a.Decisions},
	}
	for _, sec := range sections {
		if rendered := domain.RenderItems(sec.items); len(rendered) > 0 {
			parts = append(parts, sec.label+": "+strings.Join(rendered, ", "))
		}
	}
	return strings.Join(parts, "\n")
}

// DocumentMetadata projects the filterable scalar fields of an analysis.
func DocumentMetadata(a *domain.MeetingAnalysis) map[string]string {
	meta := map[string]string{
		domain.MetaMeetingID:    a.ID,
		domain.MetaOriginalFile: a.OriginalFile,
		domain.MetaTimestamp:    a.Timestamp.UTC().Format(time.RFC3339),
		domain.MetaMeetingType:  a.MeetingType(),
	}
	if lang := a.Language(); lang != "" {
		meta[domain.MetaLanguage] = lang
	}
	return meta
}

func (s *IndexService) ready() error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if s.vectors == nil {
		return domain.ErrVectorStoreUnavailable
	}
	return nil
}

// IndexOne renders, embeds and upserts one analysis keyed by its ID.
func (s *IndexService) IndexOne(ctx context.Context, a *domain.MeetingAnalysis) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if a == nil || a.ID == "" {
		return false, fmt.Errorf("index analysis without id: %w", domain.ErrInvalidInput)
	}

	text := RenderDocument(a)
	if text == "" {
		logger.Debug("Skipping empty analysis %s", a.ID)
		return false, nil
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed analysis %s: %w", a.ID, err)
	}
	doc := domain.IndexedDocument{
		MeetingID: a.ID,
		Text:      text,
		Metadata:  DocumentMetadata(a),
		Embedding: embedding,
	}
	if err := s.vectors.Upsert(ctx, []domain.IndexedDocument{doc}); err != nil {
		return false, fmt.Errorf("upsert analysis %s: %w", a.ID, err)
	}
	return true, nil
}

// IndexAll indexes every stored analysis in batches. Without force, IDs
// already in the vector store are skipped. Unreadable or empty records are
// skipped; the count of newly indexed records is returned.
func (s *IndexService) IndexAll(ctx context.Context, force bool) (int, error) {
	logger.Section("Index History")
	if err := s.ready(); err != nil {
		return 0, err
	}

	ids, err := s.history.IDs()
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}

	if !force && len(ids) > 0 {
		existing, err := s.vectors.Has(ctx, ids)
		if err != nil {
			return 0, fmt.Errorf("check indexed ids: %w", err)
		}
		pending := ids[:0:0]
		for _, id := range ids {
			if !existing[id] {
				pending = append(pending, id)
			}
		}
		logger.Debug("%d of %d records already indexed", len(ids)-len(pending), len(ids))
		ids = pending
	}

	indexed := 0
	batch := make([]domain.IndexedDocument, 0, s.batchSize)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		a, err := s.history.Load(id)
		if err != nil {
			logger.Warn("Skipping history record %s: %v", id, err)
			continue
		}
		text := RenderDocument(a)
		if text == "" {
			continue
		}
		batch = append(batch, domain.IndexedDocument{
			MeetingID: a.ID,
			Text:      text,
			Metadata:  DocumentMetadata(a),
		})

		if len(batch) == s.batchSize {
			indexed += s.flush(ctx, batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		indexed += s.flush(ctx, batch)
	}

	logger.Info("Indexed %d meetings", indexed)
	return indexed, nil
}

// flush embeds and upserts a batch, returning how many records were stored.
// A failed batch embedding, or a batch upsert rejected for a dimension
// mismatch, falls back to per-record work so one bad record does not sink
// the rest.
func (s *IndexService) flush(ctx context.Context, batch []domain.IndexedDocument) int {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	docs := make([]domain.IndexedDocument, 0, len(batch))
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(embeddings) == len(batch) {
		for i := range batch {
			doc := batch[i]
			doc.Embedding = embeddings[i]
			docs = append(docs, doc)
		}
	} else {
		if err != nil {
			logger.Warn("Batch embedding failed, retrying per record: %v", err)
		}
		for _, doc := range batch {
			embedding, err := s.embedder.Embed(ctx, doc.Text)
			if err != nil {
				logger.Warn("Skipping %s: embed: %v", doc.MeetingID, err)
				continue
			}
			doc.Embedding = embedding
			docs = append(docs, doc)
		}
	}

	if len(docs) == 0 {
		return 0
	}
	err = s.vectors.Upsert(ctx, docs)
	if err == nil {
		return len(docs)
	}
	if !errors.Is(err, domain.ErrDimensionMismatch) || len(docs) == 1 {
		logger.Warn("Skipping batch of %d: upsert: %v", len(docs), err)
		return 0
	}

	// One record of the wrong width rejects the whole batch.
	logger.Warn("Batch upsert failed, retrying per record: %v", err)
	stored := 0
	for _, doc := range docs {
		if err := s.vectors.Upsert(ctx, []domain.IndexedDocument{doc}); err != nil {
			logger.Warn("Skipping %s: upsert: %v", doc.MeetingID, err)
			continue
		}
		stored++
	}
	return stored
}

// Count returns the number of indexed records.
func (s *IndexService) Count(ctx context.Context) (int, error) {
	if s.vectors == nil {
		return 0, domain.ErrVectorStoreUnavailable
	}
	return s.vectors.Count(ctx)
}

// Remove drops one meeting from the index.
func (s *IndexService) Remove(ctx context.Context, id string) error {
	if s.vectors == nil {
		return domain.ErrVectorStoreUnavailable
	}
	return s.vectors.Delete(ctx, id)
}
