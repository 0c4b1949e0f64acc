// Package pyannote diarizes audio locally with pyannote.audio through an
// embedded python helper.
package pyannote

import (
	"context"
	_ "embed"
	"errors"
	"sort"

	"github.com/custodia-labs/minutes/internal/adapters/driven/pyrun"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

//go:embed assets/pyannote_diarize.py
var helper []byte

// Ensure Diarizer implements the interface.
var _ driven.Diarizer = (*Diarizer)(nil)

// DefaultPipeline is the pretrained pipeline loaded by the helper.
const DefaultPipeline = "pyannote/speaker-diarization-3.1"

// Config holds configuration for the diarizer.
type Config struct {
	// Python is the interpreter with pyannote.audio installed.
	// Empty uses $MINUTES_PYTHON or python3.
	Python string

	// Pipeline names the pretrained pipeline (default: pyannote/speaker-diarization-3.1).
	Pipeline string

	// MinSpeakers and MaxSpeakers bound the speaker count when positive.
	MinSpeakers int
	MaxSpeakers int
}

// Diarizer keeps one pyannote helper running with the pipeline loaded.
type Diarizer struct {
	script      pyrun.Script
	pipeline    string
	minSpeakers int
	maxSpeakers int
	proc        *pyrun.Process
}

type request struct {
	Audio       string `json:"audio"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

// New creates a diarizer without starting the helper.
func New(cfg Config) *Diarizer {
	if cfg.Pipeline == "" {
		cfg.Pipeline = DefaultPipeline
	}
	return &Diarizer{
		script:      pyrun.Script{Name: "pyannote", Source: helper, Interpreter: cfg.Python},
		pipeline:    cfg.Pipeline,
		minSpeakers: cfg.MinSpeakers,
		maxSpeakers: cfg.MaxSpeakers,
	}
}

// Load creates a diarizer and starts the helper, which loads the pipeline
// before Load returns.
func Load(ctx context.Context, cfg Config) (*Diarizer, error) {
	d := New(cfg)
	if err := d.start(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Diarizer) start(ctx context.Context) error {
	proc, err := d.script.Start(ctx, "--pipeline", d.pipeline)
	if err != nil {
		return err
	}
	d.proc = proc
	return nil
}

// Diarize processes the whole file at path. Segments are ordered by start
// time; zero-length turns are dropped.
func (d *Diarizer) Diarize(ctx context.Context, path string) ([]domain.DiarizationSegment, error) {
	if d.proc == nil {
		return nil, errors.New("pyannote: pipeline not loaded")
	}
	var out struct {
		Segments []domain.DiarizationSegment `json:"segments"`
	}
	req := request{Audio: path, MinSpeakers: d.minSpeakers, MaxSpeakers: d.maxSpeakers}
	if err := d.proc.Call(ctx, req, &out); err != nil {
		return nil, err
	}

	segments := out.Segments[:0]
	for _, s := range out.Segments {
		if s.End > s.Start && s.SpeakerID != "" {
			segments = append(segments, s)
		}
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments, nil
}

// Name identifies the backend and pipeline.
func (d *Diarizer) Name() string {
	return "pyannote/" + d.pipeline
}

// Close stops the helper.
func (d *Diarizer) Close() error {
	if d.proc == nil {
		return nil
	}
	return d.proc.Close()
}
