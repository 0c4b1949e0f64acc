package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// alternatingSpeakers returns 2-second turns alternating between two speakers.
func alternatingSpeakers(total float64) []domain.DiarizationSegment {
	var segs []domain.DiarizationSegment
	for start, i := 0.0, 0; start < total; start, i = start+2, i+1 {
		segs = append(segs, domain.DiarizationSegment{
			Start:     start,
			End:       start + 2,
			SpeakerID: fmt.Sprintf("SPEAKER_%02d", i%2),
		})
	}
	return segs
}

func newTestPipeline(
	t *testing.T, stt driven.Transcriber, diar driven.Diarizer,
) (*TranscriptionService, *memSpool) {
	t.Helper()
	var diarLoader Loader[driven.Diarizer]
	if diar != nil {
		diarLoader = diarizerLoader(diar)
	}
	var sttLoader Loader[driven.Transcriber]
	if stt != nil {
		sttLoader = transcriberLoader(stt)
	}
	spool := newMemSpool()
	svc := NewTranscriptionService(
		NewModelHost(sttLoader, diarLoader, ModelHostOptions{}),
		NewSessionBuffers(spool),
		TranscriptionOptions{},
	)
	return svc, spool
}

// growingSpeech transcribes call n as 2n one-second words.
func growingSpeech() *fakeTranscriber {
	return &fakeTranscriber{fn: func(call int, _ string) (*domain.Transcription, error) {
		return &domain.Transcription{Words: words(call * 2)}, nil
	}}
}

func assertWellFormed(t *testing.T, segs []domain.SpeakerLabeledSegment) {
	t.Helper()
	for i, s := range segs {
		assert.LessOrEqual(t, s.Start, s.End, "segment %d start after end", i)
		if i > 0 {
			assert.LessOrEqual(t, segs[i-1].Start, s.Start, "segment %d out of order", i)
			assert.NotEqual(t, segs[i-1].Speaker, s.Speaker, "adjacent segments %d and %d share a speaker", i-1, i)
		}
	}
}

func TestTranscription_SingleSpeakerStream(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPipeline(t, growingSpeech(), nil)
	require.NoError(t, svc.Open("s1", ""))

	for i := 1; i <= 5; i++ {
		events := svc.ProcessChunk(ctx, "s1", []byte("audio"), "en")
		require.Len(t, events, 1)
		ev := events[0]
		require.Equal(t, domain.EventTranscriptUpdate, ev.Type)
		assert.Equal(t, i, ev.Chunk)
		require.Len(t, ev.Segments, 1)
		assert.Equal(t, domain.FallbackSpeaker, ev.Segments[0].Speaker)
		assertWellFormed(t, ev.Segments)
	}

	final := svc.Finalize("s1")
	assert.Equal(t, domain.EventTranscriptFinal, final.Type)
	assert.True(t, strings.HasPrefix(final.Text, "[Guest-1] "), final.Text)
}

func TestTranscription_TwoSpeakersAfterRefresh(t *testing.T) {
	ctx := context.Background()
	diar := &fakeDiarizer{fn: func(int) ([]domain.DiarizationSegment, error) {
		return alternatingSpeakers(40), nil
	}}
	svc, _ := newTestPipeline(t, growingSpeech(), diar)
	require.NoError(t, svc.Open("s2", "wav"))

	for i := 1; i <= 10; i++ {
		events := svc.ProcessChunk(ctx, "s2", []byte{byte(i)}, "")
		require.Len(t, events, 1)
		ev := events[0]
		require.Equal(t, domain.EventTranscriptUpdate, ev.Type)
		assertWellFormed(t, ev.Segments)

		speakers := map[string]bool{}
		for _, s := range ev.Segments {
			speakers[s.Speaker] = true
		}
		if i < 5 {
			assert.Len(t, speakers, 1, "chunk %d", i)
		} else {
			assert.GreaterOrEqual(t, len(speakers), 2, "chunk %d", i)
		}
	}
	assert.Equal(t, 2, diar.callCount())
}

func TestTranscription_ChunkCountMatchesBytes(t *testing.T) {
	svc, spool := newTestPipeline(t, growingSpeech(), nil)
	require.NoError(t, svc.Open("s", ""))

	total := 0
	for i := 1; i <= 7; i++ {
		chunk := make([]byte, i*10)
		total += len(chunk)
		svc.ProcessChunk(context.Background(), "s", chunk, "")
	}

	snap, err := svc.buffers.Snapshot("s")
	require.NoError(t, err)
	assert.Equal(t, 7, snap.ChunkCount)
	assert.Equal(t, int64(total), snap.Bytes)
	assert.Equal(t, total, spool.size(snap.Path))
	assert.True(t, strings.HasSuffix(snap.Path, ".webm"))
}

func TestTranscription_ReTranscribesWholeFile(t *testing.T) {
	stt := growingSpeech()
	svc, _ := newTestPipeline(t, stt, nil)
	require.NoError(t, svc.Open("s", ""))

	svc.ProcessChunk(context.Background(), "s", []byte("a"), "fr")
	svc.ProcessChunk(context.Background(), "s", []byte("b"), "")

	require.Equal(t, 2, stt.callCount())
	assert.Equal(t, stt.paths[0], stt.paths[1])
	assert.Equal(t, "fr", stt.opts[0].Language)
	assert.Equal(t, "", stt.opts[1].Language)
	assert.True(t, stt.opts[0].VADFilter)
	assert.Equal(t, 1, stt.opts[0].BeamSize)
}

func TestTranscription_STTErrorKeepsSessionOpen(t *testing.T) {
	stt := &fakeTranscriber{fn: func(call int, _ string) (*domain.Transcription, error) {
		if call == 1 {
			return nil, errors.New("decoder hiccup")
		}
		return &domain.Transcription{Words: words(2)}, nil
	}}
	svc, _ := newTestPipeline(t, stt, nil)
	require.NoError(t, svc.Open("s", ""))

	events := svc.ProcessChunk(context.Background(), "s", []byte("a"), "")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "decoder hiccup")

	events = svc.ProcessChunk(context.Background(), "s", []byte("b"), "")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTranscriptUpdate, events[0].Type)
	assert.Equal(t, 2, events[0].Chunk)
}

func TestTranscription_RateLimitReportedVerbatim(t *testing.T) {
	stt := &fakeTranscriber{fn: func(int, string) (*domain.Transcription, error) {
		return nil, &domain.RateLimitError{Provider: "openai", Message: "quota exceeded"}
	}}
	svc, _ := newTestPipeline(t, stt, nil)
	require.NoError(t, svc.Open("s", ""))

	events := svc.ProcessChunk(context.Background(), "s", []byte("a"), "")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "quota exceeded")
}

func TestTranscription_DiarizationFailureReusesSnapshot(t *testing.T) {
	diar := &fakeDiarizer{fn: func(call int) ([]domain.DiarizationSegment, error) {
		if call == 1 {
			return alternatingSpeakers(40), nil
		}
		return nil, errors.New("pyannote crashed")
	}}
	svc, _ := newTestPipeline(t, growingSpeech(), diar)
	require.NoError(t, svc.Open("s", ""))

	var last []domain.TranscriptEvent
	for range 10 {
		last = svc.ProcessChunk(context.Background(), "s", []byte("a"), "")
	}

	require.Len(t, last, 2)
	assert.Equal(t, domain.EventError, last[0].Type)
	assert.Contains(t, last[0].Message, "pyannote crashed")
	assert.Equal(t, domain.EventTranscriptUpdate, last[1].Type)
	assert.Equal(t, 10, last[1].Chunk)

	speakers := map[string]bool{}
	for _, s := range last[1].Segments {
		speakers[s.Speaker] = true
	}
	assert.GreaterOrEqual(t, len(speakers), 2)
}

func TestTranscription_NoSTTConfigured(t *testing.T) {
	svc, _ := newTestPipeline(t, nil, nil)
	assert.False(t, svc.Available())
	require.NoError(t, svc.Open("s", ""))

	events := svc.ProcessChunk(context.Background(), "s", []byte("a"), "")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
}

func TestTranscription_UnknownSession(t *testing.T) {
	svc, _ := newTestPipeline(t, growingSpeech(), nil)

	events := svc.ProcessChunk(context.Background(), "nope", []byte("a"), "")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)

	final := svc.Finalize("nope")
	assert.Equal(t, domain.EventError, final.Type)
}

func TestTranscription_FinalizeClosesBuffer(t *testing.T) {
	svc, spool := newTestPipeline(t, growingSpeech(), nil)
	require.NoError(t, svc.Open("s", ""))
	svc.ProcessChunk(context.Background(), "s", []byte("a"), "")

	svc.Finalize("s")

	assert.Zero(t, svc.buffers.Len())
	assert.Zero(t, spool.open())
}

func TestAlignSpeakers(t *testing.T) {
	w := []domain.WordSegment{
		{Text: "hello", Start: 0, End: 1},
		{Text: "there", Start: 1, End: 2},
		{Text: "  ", Start: 2, End: 2.5},
		{Text: "hi", Start: 3, End: 4},
		{Text: "again", Start: 10, End: 11},
	}

	t.Run("midpoint assignment and merge", func(t *testing.T) {
		diar := []domain.DiarizationSegment{
			{Start: 0, End: 2.9, SpeakerID: "A"},
			{Start: 2.9, End: 5, SpeakerID: "B"},
		}
		segs := AlignSpeakers(w, diar, "Guest-1")
		require.Len(t, segs, 3)
		assert.Equal(t, domain.SpeakerLabeledSegment{Speaker: "A", Text: "hello there", Start: 0, End: 2}, segs[0])
		assert.Equal(t, "B", segs[1].Speaker)
		assert.Equal(t, "Guest-1", segs[2].Speaker)
		assert.Equal(t, "again", segs[2].Text)
	})

	t.Run("empty diarization collapses to fallback", func(t *testing.T) {
		segs := AlignSpeakers(w, nil, "Guest-1")
		require.Len(t, segs, 1)
		assert.Equal(t, "hello there hi again", segs[0].Text)
		assert.Equal(t, 0.0, segs[0].Start)
		assert.Equal(t, 11.0, segs[0].End)
	})

	t.Run("no words", func(t *testing.T) {
		segs := AlignSpeakers(nil, nil, "Guest-1")
		assert.NotNil(t, segs)
		assert.Empty(t, segs)
	})

	t.Run("unicode text survives", func(t *testing.T) {
		segs := AlignSpeakers([]domain.WordSegment{
			{Text: "会議", Start: 0, End: 1},
			{Text: "café", Start: 1, End: 2},
			{Text: "🎉", Start: 2, End: 3},
		}, nil, "Guest-1")
		require.Len(t, segs, 1)
		assert.Equal(t, "会議 café 🎉", segs[0].Text)
	})
}

func TestRenderTranscript(t *testing.T) {
	out := RenderTranscript([]domain.SpeakerLabeledSegment{
		{Speaker: "A", Text: "hi"},
		{Speaker: "B", Text: "hello"},
	})
	assert.Equal(t, "[A] hi\n[B] hello", out)
	assert.Equal(t, "", RenderTranscript(nil))
}

func collect(t *testing.T, ch <-chan domain.TranscriptEvent) []domain.TranscriptEvent {
	t.Helper()
	var events []domain.TranscriptEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for session events")
		}
	}
}

func TestLiveSession_OrderedEvents(t *testing.T) {
	svc, spool := newTestPipeline(t, growingSpeech(), nil)

	ls, err := svc.Start(context.Background(), "ogg")
	require.NoError(t, err)
	require.NotEmpty(t, ls.ID())

	for range 5 {
		require.NoError(t, ls.Push([]byte("chunk"), ""))
	}
	require.NoError(t, ls.Stop())

	events := collect(t, ls.Events())
	require.Len(t, events, 6)
	for i, ev := range events[:5] {
		assert.Equal(t, domain.EventTranscriptUpdate, ev.Type)
		assert.Equal(t, i+1, ev.Chunk)
	}
	assert.Equal(t, domain.EventTranscriptFinal, events[5].Type)
	assert.True(t, strings.HasPrefix(events[5].Text, "[Guest-1] "))

	assert.Zero(t, spool.open())
	assert.Error(t, ls.Push([]byte("late"), ""))
}

func TestLiveSession_CloseReleasesBuffer(t *testing.T) {
	svc, spool := newTestPipeline(t, growingSpeech(), nil)

	ls, err := svc.Start(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, ls.Push([]byte("a"), ""))

	ls.Close()
	ls.Close()
	collect(t, ls.Events())

	assert.Zero(t, svc.buffers.Len())
	assert.Zero(t, spool.open())
}

func TestLiveSession_ContextCancel(t *testing.T) {
	svc, _ := newTestPipeline(t, growingSpeech(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	ls, err := svc.Start(ctx, "")
	require.NoError(t, err)

	cancel()
	collect(t, ls.Events())
	assert.Zero(t, svc.buffers.Len())
}
