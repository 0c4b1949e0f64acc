package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService records meeting analyses and keeps them indexed.
type HistoryService struct {
	store driven.HistoryStore
	index *IndexService
	now   func() time.Time
}

// NewHistoryService creates a history service. index may be nil.
func NewHistoryService(store driven.HistoryStore, index *IndexService) *HistoryService {
	return &HistoryService{store: store, index: index, now: time.Now}
}

// Record assigns missing IDs and timestamps, saves the analysis and indexes it.
func (s *HistoryService) Record(ctx context.Context, a *domain.MeetingAnalysis) error {
	if a == nil {
		return fmt.Errorf("record analysis: %w", domain.ErrInvalidInput)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now().UTC()
	}
	if a.ID == "" {
		a.ID = domain.NewAnalysisID(a.Timestamp)
	}

	if err := s.store.Save(a); err != nil {
		return fmt.Errorf("record analysis %s: %w", a.ID, err)
	}
	logger.Info("Recorded analysis %s (%s)", a.ID, a.OriginalFile)

	if s.index == nil {
		return nil
	}
	if _, err := s.index.IndexOne(ctx, a); err != nil {
		if errors.Is(err, domain.ErrResourceUnavailable) {
			logger.Debug("Not indexing %s: %v", a.ID, err)
		} else {
			logger.Warn("Failed to index %s: %v", a.ID, err)
		}
	}
	return nil
}

// Get loads one analysis.
func (s *HistoryService) Get(_ context.Context, id string) (*domain.MeetingAnalysis, error) {
	return s.store.Load(id)
}

// List returns compact projections.
func (s *HistoryService) List(_ context.Context, opts domain.ListOptions) ([]domain.CompactAnalysis, error) {
	if !opts.SortBy.IsValid() {
		return nil, fmt.Errorf("unknown sort field %q: %w", opts.SortBy, domain.ErrInvalidInput)
	}
	return s.store.List(opts)
}

// FindByFilename returns the newest analysis whose original file matches name.
func (s *HistoryService) FindByFilename(_ context.Context, name string) (*domain.MeetingAnalysis, error) {
	if name == "" {
		return nil, fmt.Errorf("empty filename: %w", domain.ErrInvalidInput)
	}
	return s.store.FindByFilename(name)
}
