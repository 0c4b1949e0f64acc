package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Accepted upload extensions.
var (
	textExtensions  = map[string]bool{"txt": true, "md": true, "vtt": true, "srt": true}
	audioExtensions = map[string]bool{
		"wav": true, "mp3": true, "m4a": true, "webm": true, "ogg": true, "flac": true, "mp4": true,
	}
)

// spoolChunkSize is the read size used when copying uploads to the spool.
const spoolChunkSize = 1 << 20

// IngestService analyses uploaded recordings and transcripts.
type IngestService struct {
	history   *HistoryService
	extractor driven.AnalysisExtractor
	models    *ModelHost
	spool     driven.AudioSpool
	maxBytes  int64
	decode    domain.TranscribeOptions
}

// NewIngestService creates an ingest service. extractor and models may be nil;
// text uploads then fail with domain.ErrLLMUnavailable and audio uploads with
// domain.ErrSTTUnavailable.
func NewIngestService(
	history *HistoryService,
	extractor driven.AnalysisExtractor,
	models *ModelHost,
	spool driven.AudioSpool,
	maxBytes int64,
) *IngestService {
	if maxBytes <= 0 {
		maxBytes = domain.DefaultUploadMaxBytes
	}
	return &IngestService{
		history:   history,
		extractor: extractor,
		models:    models,
		spool:     spool,
		maxBytes:  maxBytes,
		decode:    domain.DefaultTranscribeOptions(),
	}
}

// Ingest turns an upload into a recorded, indexed MeetingAnalysis.
// size may be -1 when unknown; the limit is then enforced while reading.
func (s *IngestService) Ingest(
	ctx context.Context, filename string, r io.Reader, size int64, language string,
) (*domain.MeetingAnalysis, error) {
	logger.Section("Ingest")
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("missing file name: %w", domain.ErrInvalidInput)
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d: %w", filename, size, s.maxBytes, domain.ErrFileTooLarge)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	var (
		transcript string
		err        error
	)
	switch {
	case textExtensions[ext]:
		transcript, err = s.readText(r, ext)
	case audioExtensions[ext]:
		transcript, err = s.transcribeUpload(ctx, r, ext, language)
	default:
		return nil, fmt.Errorf("%q: %w", ext, domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%s contains no speech or text: %w", filename, domain.ErrInvalidInput)
	}

	if s.extractor == nil {
		return nil, domain.ErrLLMUnavailable
	}
	analysis, err := s.extractor.Extract(ctx, transcript, driven.AnalysisMeta{OriginalFile: filename, Language: language})
	if err != nil {
		return nil, fmt.Errorf("analyse %s: %w", filename, err)
	}
	analysis.OriginalFile = filename
	analysis.Transcript = transcript
	if language != "" && analysis.Language() == "" {
		if analysis.Metadata == nil {
			analysis.Metadata = map[string]any{}
		}
		analysis.Metadata[domain.MetaLanguage] = language
	}

	if err := s.history.Record(ctx, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

func (s *IngestService) readText(r io.Reader, ext string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("upload exceeds %d bytes: %w", s.maxBytes, domain.ErrFileTooLarge)
	}
	text := string(data)
	if ext == "vtt" || ext == "srt" {
		text = StripSubtitleTiming(text)
	}
	return text, nil
}

func (s *IngestService) transcribeUpload(ctx context.Context, r io.Reader, ext, language string) (string, error) {
	if s.models == nil {
		return "", domain.ErrSTTUnavailable
	}
	stt, err := s.models.Transcriber(ctx)
	if err != nil {
		return "", err
	}

	path, err := s.spool.Create("upload-"+uuid.NewString(), ext)
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	defer func() {
		if err := s.spool.Remove(path); err != nil {
			logger.Warn("Failed to remove spooled upload %s: %v", path, err)
		}
	}()

	if err := s.copyToSpool(path, r); err != nil {
		return "", err
	}

	opts := s.decode
	opts.Language = language
	transcription, err := stt.Transcribe(ctx, path, opts)
	if err != nil {
		return "", fmt.Errorf("transcribe upload: %w", err)
	}

	var diarization []domain.DiarizationSegment
	if d, err := s.models.Diarizer(ctx); err == nil {
		diarization, err = d.Diarize(ctx, path)
		if err != nil {
			logger.Warn("Diarization failed, using a single speaker: %v", err)
			diarization = nil
		}
	} else if !errors.Is(err, domain.ErrDiarizerUnavailable) {
		logger.Warn("Diarizer unavailable: %v", err)
	}

	return RenderTranscript(AlignSpeakers(transcription.Words, diarization, domain.FallbackSpeaker)), nil
}

func (s *IngestService) copyToSpool(path string, r io.Reader) error {
	var total int64
	buf := make([]byte, spoolChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > s.maxBytes {
				return fmt.Errorf("upload exceeds %d bytes: %w", s.maxBytes, domain.ErrFileTooLarge)
			}
			if aerr := s.spool.Append(path, buf[:n]); aerr != nil {
				return fmt.Errorf("spool upload: %w", aerr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
	}
}

var (
	subtitleTiming = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?[.,]\d{3}\s+-->\s+`)
	subtitleIndex  = regexp.MustCompile(`^\d+$`)
)

// StripSubtitleTiming removes WebVTT/SRT headers, cue numbers and timing
// lines, keeping only the spoken text lines.
func StripSubtitleTiming(text string) string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "",
			strings.HasPrefix(trimmed, "WEBVTT"),
			strings.HasPrefix(trimmed, "NOTE"),
			subtitleIndex.MatchString(trimmed),
			subtitleTiming.MatchString(trimmed):
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
