package driven

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// AnalysisExtractor turns a final transcript into a MeetingAnalysis.
// The returned analysis has no ID; the caller assigns one before saving.
type AnalysisExtractor interface {
	Extract(ctx context.Context, transcript string, meta AnalysisMeta) (*domain.MeetingAnalysis, error)
}

// AnalysisMeta carries what is known about the meeting before analysis.
type AnalysisMeta struct {
	OriginalFile string
	Language     string
}
