// Package llm extracts a structured meeting analysis from a transcript by
// prompting a language model for JSON.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.AnalysisExtractor = (*Extractor)(nil)

// Generation parameters.
const (
	maxTokens   = 2048
	temperature = 0.2
	systemHint  = "You analyse meeting transcripts and reply with JSON only."
)

// DefaultMeetingType is used when the model omits or blanks meeting_type.
const DefaultMeetingType = "other"

// MaxTranscriptRunes caps the transcript sent to the model.
const MaxTranscriptRunes = 60000

// Extractor implements driven.AnalysisExtractor over an LLMService.
type Extractor struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewExtractor creates an extractor. A nil prompt store uses the built-in prompt.
func NewExtractor(llm driven.LLMService, prompts driven.PromptStore) *Extractor {
	return &Extractor{llm: llm, prompts: prompts}
}

// extraction is the JSON shape requested from the model.
type extraction struct {
	Summary     string                `json:"summary"`
	Topics      []domain.AnalysisItem `json:"topics"`
	ActionItems []domain.AnalysisItem `json:"action_items"`
	Decisions   []domain.AnalysisItem `json:"decisions"`
	MeetingType string                `json:"meeting_type"`
	Language    string                `json:"language"`
}

// Extract asks the model for an analysis of transcript.
func (e *Extractor) Extract(ctx context.Context, transcript string, meta driven.AnalysisMeta) (*domain.MeetingAnalysis, error) {
	if e.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("empty transcript: %w", domain.ErrInvalidInput)
	}

	raw, err := e.llm.Generate(ctx, e.prompt(transcript, meta), driven.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      systemHint,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	var out extraction
	if err := json.Unmarshal(ExtractJSON(raw), &out); err != nil {
		logger.Debug("Unparseable analysis output for %s: %q", meta.OriginalFile, raw)
		return nil, fmt.Errorf("%w: model returned invalid JSON: %w", domain.ErrGenerationFailed, err)
	}

	meetingType := strings.ToLower(strings.TrimSpace(out.MeetingType))
	if meetingType == "" {
		meetingType = DefaultMeetingType
	}
	metadata := map[string]any{domain.MetaMeetingType: meetingType}
	if lang := firstNonEmpty(meta.Language, strings.TrimSpace(out.Language)); lang != "" {
		metadata[domain.MetaLanguage] = lang
	}

	return &domain.MeetingAnalysis{
		OriginalFile: meta.OriginalFile,
		Summary:      strings.TrimSpace(out.Summary),
		Topics:       nonNil(out.Topics),
		ActionItems:  nonNil(out.ActionItems),
		Decisions:    nonNil(out.Decisions),
		Metadata:     metadata,
	}, nil
}

func (e *Extractor) prompt(transcript string, meta driven.AnalysisMeta) string {
	template := driven.DefaultPrompts[driven.PromptAnalysisExtract]
	if e.prompts != nil {
		if t, err := e.prompts.Load(driven.PromptAnalysisExtract); err == nil {
			template = t
		} else {
			logger.Warn("Using built-in analysis prompt: %v", err)
		}
	}

	if r := []rune(transcript); len(r) > MaxTranscriptRunes {
		transcript = string(r[:MaxTranscriptRunes])
	}

	var prompt string
	if strings.Count(template, "%s") == 1 {
		prompt = fmt.Sprintf(template, transcript)
	} else {
		prompt = template + "\n\nTranscript:\n" + transcript
	}
	if meta.Language != "" {
		prompt += fmt.Sprintf("\n\nThe transcript language is %q. Write the summary, topics, action items and decisions in that language.", meta.Language)
	}
	return prompt
}

// ExtractJSON returns the JSON object inside a model reply, dropping
// markdown fences and any text around the outermost braces.
func ExtractJSON(s string) []byte {
	b := bytes.TrimSpace([]byte(s))
	if bytes.HasPrefix(b, []byte("```")) {
		b = b[3:]
		if nl := bytes.IndexByte(b, '\n'); nl >= 0 {
			b = b[nl+1:]
		}
		b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	}
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start >= 0 && end > start {
		return b[start : end+1]
	}
	return bytes.TrimSpace(b)
}

func nonNil(items []domain.AnalysisItem) []domain.AnalysisItem {
	if items == nil {
		return []domain.AnalysisItem{}
	}
	return items
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
