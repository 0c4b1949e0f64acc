package driving

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// TranscriptionService runs live transcription sessions.
type TranscriptionService interface {
	// Start opens a session whose audio container is format (e.g. "webm").
	Start(ctx context.Context, format string) (LiveSession, error)

	// Available reports whether speech-to-text is configured.
	Available() bool

	// Status reports the speech model load states without loading them.
	Status() domain.ModelStatus
}

// LiveSession is one live transcription session served by a single worker.
// Events are delivered in chunk order; the channel closes when the session ends.
type LiveSession interface {
	// ID returns the session identifier.
	ID() string

	// Push queues one audio chunk. It fails once the session is stopping.
	Push(audio []byte, language string) error

	// Stop requests the final transcript after all queued chunks.
	Stop() error

	// Events returns the server-to-client event stream.
	Events() <-chan domain.TranscriptEvent

	// Close abandons the session and releases its buffer. Idempotent.
	Close()
}
