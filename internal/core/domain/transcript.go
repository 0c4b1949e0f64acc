package domain

import (
	"encoding/json"
	"time"
)

// FallbackSpeaker labels words spoken before the first diarization or in a gap.
const FallbackSpeaker = "Guest-1"

// WordSegment is a timed piece of recognised speech.
// Start and End are seconds from the audio origin and Start <= End.
type WordSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Midpoint returns the centre of the segment in seconds.
func (w WordSegment) Midpoint() float64 {
	return (w.Start + w.End) / 2
}

// DiarizationSegment attributes a time interval to an anonymous speaker.
type DiarizationSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id"`
}

// Contains reports whether t falls within the segment, inclusive at both ends.
func (d DiarizationSegment) Contains(t float64) bool {
	return t >= d.Start && t <= d.End
}

// SpeakerLabeledSegment is a run of words attributed to one speaker.
type SpeakerLabeledSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Transcription is the output of one speech-to-text call.
type Transcription struct {
	// Language is the detected or requested language code.
	Language string

	// Duration is the length of the processed audio.
	Duration time.Duration

	// Words holds word or word-group segments ordered by Start.
	Words []WordSegment
}

// Text joins all word texts with single spaces.
func (t Transcription) Text() string {
	out := make([]byte, 0, len(t.Words)*6)
	for _, w := range t.Words {
		if w.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, w.Text...)
	}
	return string(out)
}

// TranscribeOptions configures one speech-to-text call.
//
// The decoding fields suppress hallucinated text on silence. They are
// tunables: adapters pass what their backend supports.
type TranscribeOptions struct {
	// Language is an ISO 639-1 hint; empty lets the model detect it.
	Language string

	// BeamSize is the decoder beam width.
	BeamSize int

	// VADFilter drops non-speech audio before decoding.
	VADFilter bool

	// ConditionOnPreviousText feeds earlier output back as a prompt.
	ConditionOnPreviousText bool

	// Temperature is the sampling temperature.
	Temperature float64

	// CompressionRatioThreshold rejects segments whose gzip ratio exceeds it.
	CompressionRatioThreshold float64

	// LogProbThreshold rejects segments whose average log-probability is below it.
	LogProbThreshold float64

	// NoSpeechThreshold marks segments silent above this no-speech probability.
	NoSpeechThreshold float64

	// WordTimestamps requests per-word timing.
	WordTimestamps bool
}

// DefaultTranscribeOptions returns the decoding parameters used for live audio.
func DefaultTranscribeOptions() TranscribeOptions {
	return TranscribeOptions{
		BeamSize:                  1,
		VADFilter:                 true,
		ConditionOnPreviousText:   false,
		Temperature:               0,
		CompressionRatioThreshold: 2.4,
		LogProbThreshold:          -1.0,
		NoSpeechThreshold:         0.6,
		WordTimestamps:            true,
	}
}

// ModelStatus reports the load state of each speech model.
type ModelStatus struct {
	STT      string `json:"stt"`
	Diarizer string `json:"diarizer"`
}

// TranscriptEventType discriminates server-to-client streaming events.
type TranscriptEventType string

// Streaming event types.
const (
	EventConnected        TranscriptEventType = "connected"
	EventTranscriptUpdate TranscriptEventType = "transcript_update"
	EventTranscriptFinal  TranscriptEventType = "transcript_final"
	EventError            TranscriptEventType = "error"
)

// TranscriptEvent is one server-to-client message of the streaming protocol.
// Only the fields relevant to Type are populated and serialised.
type TranscriptEvent struct {
	Type TranscriptEventType

	// SessionID is set on connected events.
	SessionID string

	// Segments is set on transcript_update events.
	Segments []SpeakerLabeledSegment

	// Chunk is the 1-based chunk number an update reflects.
	Chunk int

	// Text is set on transcript_final events.
	Text string

	// Message is set on error events.
	Message string
}

// MarshalJSON encodes the event with the fields of its type only.
func (e TranscriptEvent) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Type}
	switch e.Type {
	case EventConnected:
		out["status"] = "ready"
		if e.SessionID != "" {
			out["session_id"] = e.SessionID
		}
	case EventTranscriptUpdate:
		segments := e.Segments
		if segments == nil {
			segments = []SpeakerLabeledSegment{}
		}
		out["segments"] = segments
		out["is_final"] = false
		out["chunk"] = e.Chunk
	case EventTranscriptFinal:
		out["text"] = e.Text
	case EventError:
		out["message"] = e.Message
	}
	return json.Marshal(out)
}

// NewConnectedEvent acknowledges a new streaming connection.
func NewConnectedEvent(sessionID string) TranscriptEvent {
	return TranscriptEvent{Type: EventConnected, SessionID: sessionID}
}

// NewUpdateEvent builds a partial transcript event.
func NewUpdateEvent(chunk int, segments []SpeakerLabeledSegment) TranscriptEvent {
	return TranscriptEvent{Type: EventTranscriptUpdate, Segments: segments, Chunk: chunk}
}

// NewFinalEvent builds the final transcript event.
func NewFinalEvent(text string) TranscriptEvent {
	return TranscriptEvent{Type: EventTranscriptFinal, Text: text}
}

// NewErrorEvent builds an error event carrying err's message verbatim.
func NewErrorEvent(err error) TranscriptEvent {
	return TranscriptEvent{Type: EventError, Message: err.Error()}
}
