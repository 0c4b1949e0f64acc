// Package openai transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure Transcriber implements the interface.
var _ driven.Transcriber = (*Transcriber)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
	DefaultTimeout = 10 * time.Minute
)

// Config holds configuration for the OpenAI transcriber.
type Config struct {
	// APIKey is sent as a bearer token. Local compatible servers may not need one.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the transcription model (default: whisper-1).
	Model string

	// Timeout bounds one upload and transcription (default: 10m).
	Timeout time.Duration
}

// Transcriber uploads audio files for transcription.
type Transcriber struct {
	api   *apiclient.Client
	model string
}

// verboseResponse is the verbose_json response format.
type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// New creates a transcriber.
func New(cfg Config) *Transcriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Transcriber{
		api: apiclient.New(apiclient.Config{
			Provider: "openai",
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Header:   header,
		}),
		model: cfg.Model,
	}
}

// Transcribe uploads the file at path and returns word timings.
// When the server returns no word timings, segments stand in for words.
func (t *Transcriber) Transcribe(ctx context.Context, path string, opts domain.TranscribeOptions) (*domain.Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(t.writeForm(mw, f, filepath.Base(path), opts))
	}()
	defer pr.Close()

	resp, err := t.api.Do(ctx, http.MethodPost, "/audio/transcriptions", mw.FormDataContentType(), pr)
	if err != nil {
		return nil, apiclient.Classify(err, domain.ErrSTTUnavailable)
	}
	defer resp.Body.Close()

	var out verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode transcription: %w", err)
	}
	return out.transcription(), nil
}

func (t *Transcriber) writeForm(mw *multipart.Writer, audio io.Reader, name string, opts domain.TranscribeOptions) error {
	fields := [][2]string{
		{"model", t.model},
		{"response_format", "verbose_json"},
		{"temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)},
	}
	if opts.WordTimestamps {
		fields = append(fields, [2]string{"timestamp_granularities[]", "word"})
	}
	fields = append(fields, [2]string{"timestamp_granularities[]", "segment"})
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return err
	}
	return mw.Close()
}

func (r verboseResponse) transcription() *domain.Transcription {
	out := &domain.Transcription{
		Language: r.Language,
		Duration: time.Duration(r.Duration * float64(time.Second)),
	}
	for _, w := range r.Words {
		if text := strings.TrimSpace(w.Word); text != "" {
			out.Words = append(out.Words, domain.WordSegment{Text: text, Start: w.Start, End: w.End})
		}
	}
	if len(out.Words) > 0 {
		return out
	}
	for _, s := range r.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			out.Words = append(out.Words, domain.WordSegment{Text: text, Start: s.Start, End: s.End})
		}
	}
	if len(out.Words) == 0 {
		if text := strings.TrimSpace(r.Text); text != "" {
			out.Words = []domain.WordSegment{{Text: text, Start: 0, End: r.Duration}}
		}
	}
	return out
}

// Name identifies the backend and model.
func (t *Transcriber) Name() string {
	return "openai/" + t.model
}
