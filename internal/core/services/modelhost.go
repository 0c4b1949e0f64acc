package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Loader constructs a model on first use.
type Loader[T any] func(ctx context.Context) (T, error)

// Model load states reported by Status.
const (
	ModelDisabled    = "disabled"
	ModelNotLoaded   = "not_loaded"
	ModelLoaded      = "loaded"
	ModelUnavailable = "unavailable"
)

// ModelHostOptions configures a ModelHost.
type ModelHostOptions struct {
	// SerializeSTT guards the transcriber with a mutex across sessions.
	SerializeSTT bool

	// SerializeDiarizer guards the diarizer with a mutex across sessions.
	SerializeDiarizer bool
}

// lazyModel caches either a loaded model or the failure to load it.
// loadMu serializes loads; mu guards the cached state so status never
// waits behind a load in progress.
type lazyModel[T any] struct {
	load   Loader[T]
	loadMu sync.Mutex

	mu     sync.Mutex
	model  T
	err    error
	loaded bool
}

// get loads the model on first use. The load runs detached from the
// caller's cancellation. A load that still fails because the caller went
// away is not cached.
func (m *lazyModel[T]) get(ctx context.Context, unavailable error) (T, error) {
	if m.load == nil {
		var zero T
		return zero, unavailable
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if model, loaded, err := m.cached(); loaded {
		return model, err
	}

	model, err := m.load(context.WithoutCancel(ctx))
	if err != nil {
		err = fmt.Errorf("%w: %w", unavailable, err)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model, err
		}
		logger.Warn("Model unavailable: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.model, m.err, m.loaded = model, err, true
	return m.model, m.err
}

func (m *lazyModel[T]) cached() (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model, m.loaded, m.err
}

func (m *lazyModel[T]) status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.load == nil:
		return ModelDisabled
	case !m.loaded:
		return ModelNotLoaded
	case m.err != nil:
		return ModelUnavailable
	default:
		return ModelLoaded
	}
}

// close releases a loaded model that holds resources and forgets it, so the
// next access loads it again.
func (m *lazyModel[T]) close() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return nil
	}
	var err error
	if c, ok := any(m.model).(io.Closer); ok && m.err == nil {
		err = c.Close()
	}
	var zero T
	m.model, m.err, m.loaded = zero, nil, false
	return err
}

// ModelHost lazily loads the speech-to-text and diarization models. Each
// model loads under its own lock; a failed load is cached and reported on
// every later access.
type ModelHost struct {
	stt  lazyModel[driven.Transcriber]
	diar lazyModel[driven.Diarizer]
}

// NewModelHost creates a host. A nil loader disables that model.
func NewModelHost(stt Loader[driven.Transcriber], diar Loader[driven.Diarizer], opts ModelHostOptions) *ModelHost {
	h := &ModelHost{}
	if stt != nil {
		h.stt.load = func(ctx context.Context) (driven.Transcriber, error) {
			t, err := stt(ctx)
			if err != nil || !opts.SerializeSTT {
				return t, err
			}
			return &serialTranscriber{inner: t}, nil
		}
	}
	if diar != nil {
		h.diar.load = func(ctx context.Context) (driven.Diarizer, error) {
			d, err := diar(ctx)
			if err != nil || !opts.SerializeDiarizer {
				return d, err
			}
			return &serialDiarizer{inner: d}, nil
		}
	}
	return h
}

// Transcriber returns the speech-to-text model, loading it on first call.
// Returns an error wrapping domain.ErrSTTUnavailable when it cannot be loaded.
func (h *ModelHost) Transcriber(ctx context.Context) (driven.Transcriber, error) {
	return h.stt.get(ctx, domain.ErrSTTUnavailable)
}

// Diarizer returns the diarization model, loading it on first call.
// Returns an error wrapping domain.ErrDiarizerUnavailable when it cannot be loaded.
func (h *ModelHost) Diarizer(ctx context.Context) (driven.Diarizer, error) {
	return h.diar.get(ctx, domain.ErrDiarizerUnavailable)
}

// Close stops any loaded model that runs a helper process.
func (h *ModelHost) Close() error {
	return errors.Join(h.stt.close(), h.diar.close())
}

// HasTranscriber reports whether a speech-to-text backend is configured.
func (h *ModelHost) HasTranscriber() bool {
	return h.stt.load != nil
}

// Status reports the load state of both models without loading them.
func (h *ModelHost) Status() domain.ModelStatus {
	return domain.ModelStatus{STT: h.stt.status(), Diarizer: h.diar.status()}
}

// serialTranscriber allows one inference at a time.
type serialTranscriber struct {
	mu    sync.Mutex
	inner driven.Transcriber
}

func (s *serialTranscriber) Transcribe(
	ctx context.Context, path string, opts domain.TranscribeOptions,
) (*domain.Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Transcribe(ctx, path, opts)
}

func (s *serialTranscriber) Name() string { return s.inner.Name() }

func (s *serialTranscriber) Close() error { return closeModel(s.inner) }

// serialDiarizer allows one inference at a time.
type serialDiarizer struct {
	mu    sync.Mutex
	inner driven.Diarizer
}

func (s *serialDiarizer) Diarize(ctx context.Context, path string) ([]domain.DiarizationSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Diarize(ctx, path)
}

func (s *serialDiarizer) Name() string { return s.inner.Name() }

func (s *serialDiarizer) Close() error { return closeModel(s.inner) }

func closeModel(m any) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
