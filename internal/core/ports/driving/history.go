package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// HistoryService reads and records meeting analyses.
type HistoryService interface {
	// Record assigns an ID when missing, saves the analysis and indexes it.
	// Indexing failures are logged and do not fail the call.
	Record(ctx context.Context, analysis *domain.MeetingAnalysis) error

	// Get loads one analysis.
	Get(ctx context.Context, id string) (*domain.MeetingAnalysis, error)

	// List returns compact projections.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.CompactAnalysis, error)

	// FindByFilename returns the newest analysis whose original file matches name.
	FindByFilename(ctx context.Context, name string) (*domain.MeetingAnalysis, error)
}

// IngestService turns uploaded recordings or transcripts into recorded analyses.
type IngestService interface {
	// Ingest reads an upload of the given size. Audio is transcribed with
	// speaker labels; text is analysed as-is.
	Ingest(ctx context.Context, filename string, r io.Reader, size int64, language string) (*domain.MeetingAnalysis, error)
}
