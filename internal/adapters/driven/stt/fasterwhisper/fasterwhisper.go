// Package fasterwhisper transcribes audio locally with faster-whisper through
// an embedded python helper.
package fasterwhisper

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/adapters/driven/pyrun"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

//go:embed assets/faster_whisper.py
var helper []byte

// Ensure Transcriber implements the interface.
var _ driven.Transcriber = (*Transcriber)(nil)

// Default configuration values.
const (
	DefaultModel  = "base"
	DefaultDevice = "auto"
)

// Config holds configuration for the local transcriber.
type Config struct {
	// Model is a faster-whisper model size or path (default: base).
	Model string

	// Device is auto, cpu or cuda (default: auto).
	Device string

	// Python is the interpreter with faster-whisper installed.
	// Empty uses $MINUTES_PYTHON or python3.
	Python string
}

// Transcriber keeps one faster-whisper helper running with the model loaded.
type Transcriber struct {
	script pyrun.Script
	model  string
	device string
	proc   *pyrun.Process
}

// request mirrors the options the helper passes to WhisperModel.transcribe.
type request struct {
	Audio                     string  `json:"audio"`
	Language                  string  `json:"language,omitempty"`
	BeamSize                  int     `json:"beam_size,omitempty"`
	VADFilter                 bool    `json:"vad_filter"`
	ConditionOnPreviousText   bool    `json:"condition_on_previous_text"`
	Temperature               float64 `json:"temperature"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold,omitempty"`
	LogProbThreshold          float64 `json:"log_prob_threshold,omitempty"`
	NoSpeechThreshold         float64 `json:"no_speech_threshold,omitempty"`
	WordTimestamps            bool    `json:"word_timestamps"`
}

type helperOutput struct {
	Language string               `json:"language"`
	Duration float64              `json:"duration"`
	Words    []domain.WordSegment `json:"words"`
}

// New creates a transcriber without starting the helper.
func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	return &Transcriber{
		script: pyrun.Script{Name: "faster-whisper", Source: helper, Interpreter: cfg.Python},
		model:  cfg.Model,
		device: cfg.Device,
	}
}

// Load creates a transcriber and starts the helper, which loads the model
// before Load returns.
func Load(ctx context.Context, cfg Config) (*Transcriber, error) {
	t := New(cfg)
	if err := t.start(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transcriber) start(ctx context.Context) error {
	proc, err := t.script.Start(ctx, "--model", t.model, "--device", t.device)
	if err != nil {
		return err
	}
	t.proc = proc
	return nil
}

// Transcribe processes the whole file at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string, opts domain.TranscribeOptions) (*domain.Transcription, error) {
	if t.proc == nil {
		return nil, errors.New("faster-whisper: model not loaded")
	}
	var out helperOutput
	if err := t.proc.Call(ctx, newRequest(path, opts), &out); err != nil {
		return nil, err
	}

	words := make([]domain.WordSegment, 0, len(out.Words))
	for _, w := range out.Words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		if w.End < w.Start {
			w.End = w.Start
		}
		words = append(words, w)
	}
	return &domain.Transcription{
		Language: out.Language,
		Duration: time.Duration(out.Duration * float64(time.Second)),
		Words:    words,
	}, nil
}

func newRequest(path string, opts domain.TranscribeOptions) request {
	return request{
		Audio:                     path,
		Language:                  opts.Language,
		BeamSize:                  opts.BeamSize,
		VADFilter:                 opts.VADFilter,
		ConditionOnPreviousText:   opts.ConditionOnPreviousText,
		Temperature:               opts.Temperature,
		CompressionRatioThreshold: opts.CompressionRatioThreshold,
		LogProbThreshold:          opts.LogProbThreshold,
		NoSpeechThreshold:         opts.NoSpeechThreshold,
		WordTimestamps:            opts.WordTimestamps,
	}
}

// Name identifies the backend and model.
func (t *Transcriber) Name() string {
	return fmt.Sprintf("faster-whisper/%s", t.model)
}

// Close stops the helper.
func (t *Transcriber) Close() error {
	if t.proc == nil {
		return nil
	}
	return t.proc.Close()
}
