package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure TranscriptionService implements the interface.
var _ driving.TranscriptionService = (*TranscriptionService)(nil)

// DefaultAudioFormat is assumed when the client does not name its container.
const DefaultAudioFormat = "webm"

// TranscriptionOptions configures the live pipeline.
type TranscriptionOptions struct {
	// RefreshEvery re-runs diarization on every Nth chunk.
	RefreshEvery int

	// Language is used when a chunk carries no language hint.
	Language string

	// Decode holds the speech-to-text decoding parameters.
	Decode domain.TranscribeOptions
}

// TranscriptionService drives live transcription: each chunk re-transcribes
// the whole accumulated recording, periodically refreshes the speaker
// timeline and emits a speaker-labelled partial transcript.
type TranscriptionService struct {
	models  *ModelHost
	buffers *SessionBuffers
	opts    TranscriptionOptions
}

// NewTranscriptionService creates the pipeline.
func NewTranscriptionService(models *ModelHost, buffers *SessionBuffers, opts TranscriptionOptions) *TranscriptionService {
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = domain.DefaultDiarizationRefresh
	}
	if opts.Decode == (domain.TranscribeOptions{}) {
		opts.Decode = domain.DefaultTranscribeOptions()
	}
	return &TranscriptionService{models: models, buffers: buffers, opts: opts}
}

// Available reports whether speech-to-text is configured.
func (s *TranscriptionService) Available() bool {
	return s.models.HasTranscriber()
}

// Status reports the speech model load states.
func (s *TranscriptionService) Status() domain.ModelStatus {
	return s.models.Status()
}

// Open starts buffering a session under the given ID.
func (s *TranscriptionService) Open(id, format string) error {
	if format == "" {
		format = DefaultAudioFormat
	}
	return s.buffers.Open(id, format)
}

// Close releases a session without emitting a final transcript.
func (s *TranscriptionService) Close(id string) {
	s.buffers.Close(id)
}

// ProcessChunk appends audio to the session and returns the events to emit.
// It never fails: errors become error events and the session stays open.
// A diarization failure yields an error event followed by an update built
// on the previous speaker timeline.
func (s *TranscriptionService) ProcessChunk(ctx context.Context, id string, audio []byte, language string) []domain.TranscriptEvent {
	count, err := s.buffers.Append(id, audio)
	if err != nil {
		return []domain.TranscriptEvent{domain.NewErrorEvent(err)}
	}
	snap, err := s.buffers.Snapshot(id)
	if err != nil {
		return []domain.TranscriptEvent{domain.NewErrorEvent(err)}
	}
	logger.Debug("Session %s: chunk %d, %d bytes buffered", id, count, snap.Bytes)

	stt, err := s.models.Transcriber(ctx)
	if err != nil {
		return []domain.TranscriptEvent{domain.NewErrorEvent(err)}
	}

	opts := s.opts.Decode
	opts.Language = language
	if opts.Language == "" {
		opts.Language = s.opts.Language
	}
	transcription, err := stt.Transcribe(ctx, snap.Path, opts)
	if err != nil {
		logger.Warn("Session %s: transcription failed at chunk %d: %v", id, count, err)
		return []domain.TranscriptEvent{domain.NewErrorEvent(err)}
	}

	var events []domain.TranscriptEvent
	diarization := snap.Diarization
	if count%s.opts.RefreshEvery == 0 {
		fresh, err := s.diarize(ctx, snap.Path)
		switch {
		case errors.Is(err, domain.ErrDiarizerUnavailable):
			logger.Debug("Session %s: diarization disabled, keeping fallback speaker", id)
		case err != nil:
			logger.Warn("Session %s: diarization failed at chunk %d: %v", id, count, err)
			events = append(events, domain.NewErrorEvent(err))
		default:
			diarization = fresh
			if err := s.buffers.UpdateDiarization(id, fresh); err != nil {
				return append(events, domain.NewErrorEvent(err))
			}
		}
	}

	segments := AlignSpeakers(transcription.Words, diarization, domain.FallbackSpeaker)
	if err := s.buffers.UpdateSegments(id, segments); err != nil {
		return append(events, domain.NewErrorEvent(err))
	}
	return append(events, domain.NewUpdateEvent(count, segments))
}

func (s *TranscriptionService) diarize(ctx context.Context, path string) ([]domain.DiarizationSegment, error) {
	d, err := s.models.Diarizer(ctx)
	if err != nil {
		return nil, err
	}
	return d.Diarize(ctx, path)
}

// Finalize renders the session's transcript, closes the session and
// returns the final event.
func (s *TranscriptionService) Finalize(id string) domain.TranscriptEvent {
	snap, err := s.buffers.Snapshot(id)
	if err != nil {
		return domain.NewErrorEvent(err)
	}
	s.buffers.Close(id)
	logger.Debug("Session %s: finalised after %d chunks", id, snap.ChunkCount)
	return domain.NewFinalEvent(RenderTranscript(snap.Segments))
}

// Start opens a session with a fresh ID and starts its worker.
// The worker stops when ctx is cancelled, Stop completes or Close is called.
func (s *TranscriptionService) Start(ctx context.Context, format string) (driving.LiveSession, error) {
	id := uuid.NewString()
	if err := s.Open(id, format); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	ls := &LiveSession{
		id:     id,
		svc:    s,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan liveCommand, 32),
		events: make(chan domain.TranscriptEvent, 16),
	}
	go ls.run()
	return ls, nil
}

// AlignSpeakers attributes each word to the speaker whose diarization
// interval contains the word's midpoint, merging consecutive words of the
// same speaker. Words outside every interval get the fallback speaker.
// With no diarization at all, the words form one fallback-speaker segment.
func AlignSpeakers(
	words []domain.WordSegment, diarization []domain.DiarizationSegment, fallback string,
) []domain.SpeakerLabeledSegment {
	segments := make([]domain.SpeakerLabeledSegment, 0)
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}

		speaker := fallback
		if len(diarization) > 0 {
			speaker = speakerAt(diarization, w.Midpoint(), fallback)
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == speaker {
			last := &segments[n-1]
			last.Text += " " + text
			last.End = max(last.End, w.End)
			continue
		}
		segments = append(segments, domain.SpeakerLabeledSegment{
			Speaker: speaker,
			Text:    text,
			Start:   w.Start,
			End:     max(w.Start, w.End),
		})
	}
	return segments
}

func speakerAt(diarization []domain.DiarizationSegment, t float64, fallback string) string {
	for _, d := range diarization {
		if d.Contains(t) {
			return d.SpeakerID
		}
	}
	return fallback
}

// RenderTranscript formats segments as one "[Speaker] text" line each.
func RenderTranscript(segments []domain.SpeakerLabeledSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("[%s] %s", seg.Speaker, seg.Text))
	}
	return strings.Join(lines, "\n")
}

type liveCommand struct {
	audio    []byte
	language string
	stop     bool
}

// LiveSession is a running transcription session. A single goroutine
// processes its commands in arrival order.
type LiveSession struct {
	id     string
	svc    *TranscriptionService
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan liveCommand
	events chan domain.TranscriptEvent

	mu        sync.Mutex
	stopping  bool
	closeOnce sync.Once
}

// ID returns the session identifier.
func (l *LiveSession) ID() string { return l.id }

// Events returns the event stream. It is closed when the worker exits.
func (l *LiveSession) Events() <-chan domain.TranscriptEvent { return l.events }

// Push queues an audio chunk.
func (l *LiveSession) Push(audio []byte, language string) error {
	return l.send(liveCommand{audio: audio, language: language})
}

// Stop queues finalisation after all pending chunks.
func (l *LiveSession) Stop() error {
	return l.send(liveCommand{stop: true})
}

func (l *LiveSession) send(cmd liveCommand) error {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		return fmt.Errorf("session %s is stopping: %w", l.id, domain.ErrSessionNotFound)
	}
	if cmd.stop {
		l.stopping = true
	}
	l.mu.Unlock()

	select {
	case l.inbox <- cmd:
		return nil
	case <-l.ctx.Done():
		return l.ctx.Err()
	}
}

// Close cancels the worker and releases the buffer. Idempotent.
func (l *LiveSession) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		l.svc.Close(l.id)
	})
}

func (l *LiveSession) run() {
	defer close(l.events)
	defer l.Close()

	for {
		select {
		case <-l.ctx.Done():
			return
		case cmd := <-l.inbox:
			if cmd.stop {
				l.emit(l.svc.Finalize(l.id))
				return
			}
			for _, ev := range l.svc.ProcessChunk(l.ctx, l.id, cmd.audio, cmd.language) {
				if !l.emit(ev) {
					return
				}
			}
		}
	}
}

func (l *LiveSession) emit(ev domain.TranscriptEvent) bool {
	select {
	case l.events <- ev:
		return true
	case <-l.ctx.Done():
		return false
	}
}
