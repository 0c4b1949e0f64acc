package driven

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// Transcriber converts an audio file into timed word segments.
// Implementations are not required to be safe for concurrent use;
// the model host serialises access when configured to.
type Transcriber interface {
	// Transcribe processes the whole file at path.
	Transcribe(ctx context.Context, path string, opts domain.TranscribeOptions) (*domain.Transcription, error)

	// Name identifies the backend and model.
	Name() string
}

// Diarizer partitions an audio file into anonymous speaker intervals.
type Diarizer interface {
	// Diarize processes the whole file at path.
	Diarize(ctx context.Context, path string) ([]domain.DiarizationSegment, error)

	// Name identifies the backend and model.
	Name() string
}
