package services

import (
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// SessionBuffer is the state of one live session.
type SessionBuffer struct {
	ID          string
	Path        string
	ChunkCount  int
	Bytes       int64
	Segments    []domain.SpeakerLabeledSegment
	Diarization []domain.DiarizationSegment
}

// SessionBuffers tracks the on-disk audio and transcript state of open sessions.
//
// The table mutex only guards the map and counters. Audio appends happen
// outside it; a buffer is owned by the single worker serving its session.
type SessionBuffers struct {
	spool driven.AudioSpool

	mu       sync.Mutex
	sessions map[string]*SessionBuffer
}

// NewSessionBuffers creates an empty buffer table.
func NewSessionBuffers(spool driven.AudioSpool) *SessionBuffers {
	return &SessionBuffers{
		spool:    spool,
		sessions: make(map[string]*SessionBuffer),
	}
}

// Open allocates a fresh audio file for a session.
// Returns domain.ErrSessionExists if the ID is already open.
func (b *SessionBuffers) Open(id, format string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[id]; ok {
		return fmt.Errorf("open session %s: %w", id, domain.ErrSessionExists)
	}
	path, err := b.spool.Create(id, format)
	if err != nil {
		return fmt.Errorf("open session %s: %w", id, err)
	}
	b.sessions[id] = &SessionBuffer{ID: id, Path: path}
	return nil
}

// Append writes a chunk to the session's audio file and returns the new chunk count.
func (b *SessionBuffers) Append(id string, data []byte) (int, error) {
	b.mu.Lock()
	buf, ok := b.sessions[id]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("append to session %s: %w", id, domain.ErrSessionNotFound)
	}

	if err := b.spool.Append(buf.Path, data); err != nil {
		return 0, fmt.Errorf("append to session %s: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	buf.ChunkCount++
	buf.Bytes += int64(len(data))
	return buf.ChunkCount, nil
}

// Snapshot returns a copy of the session state.
func (b *SessionBuffers) Snapshot(id string) (SessionBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.sessions[id]
	if !ok {
		return SessionBuffer{}, fmt.Errorf("snapshot session %s: %w", id, domain.ErrSessionNotFound)
	}
	snap := *buf
	snap.Segments = slices.Clone(buf.Segments)
	snap.Diarization = slices.Clone(buf.Diarization)
	return snap, nil
}

// UpdateSegments replaces the session's current transcript.
func (b *SessionBuffers) UpdateSegments(id string, segments []domain.SpeakerLabeledSegment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.sessions[id]
	if !ok {
		return fmt.Errorf("update session %s: %w", id, domain.ErrSessionNotFound)
	}
	buf.Segments = slices.Clone(segments)
	return nil
}

// UpdateDiarization replaces the session's speaker timeline.
func (b *SessionBuffers) UpdateDiarization(id string, snapshot []domain.DiarizationSegment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.sessions[id]
	if !ok {
		return fmt.Errorf("update session %s: %w", id, domain.ErrSessionNotFound)
	}
	buf.Diarization = slices.Clone(snapshot)
	return nil
}

// Close deletes the session's audio file and forgets it. Idempotent.
// File removal errors are logged, never returned.
func (b *SessionBuffers) Close(id string) {
	b.mu.Lock()
	buf, ok := b.sessions[id]
	delete(b.sessions, id)
	b.mu.Unlock()

	if !ok {
		return
	}
	if err := b.spool.Remove(buf.Path); err != nil {
		logger.Warn("Failed to remove audio for session %s: %v", id, err)
	}
}

// Len returns the number of open sessions.
func (b *SessionBuffers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
