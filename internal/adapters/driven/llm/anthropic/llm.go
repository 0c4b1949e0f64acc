// Package anthropic provides an LLM service adapter using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// jsonInstruction stands in for a JSON response mode, which the API lacks.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout bounds Generate calls (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests when positive.
	RequestsPerSecond float64
}

// LLMService provides LLM operations using the Anthropic API.
type LLMService struct {
	api     *apiclient.Client
	model   string
	timeout time.Duration
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// streamEvent covers the event payloads the adapter reads.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		api: apiclient.New(apiclient.Config{
			Provider: "anthropic",
			BaseURL:  cfg.BaseURL,
			Header: http.Header{
				"X-Api-Key":         {cfg.APIKey},
				"Anthropic-Version": {anthropicVersion},
			},
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (s *LLMService) request(prompt string, opts driven.GenerateOptions, stream bool) messagesRequest {
	// The API requires max_tokens.
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	system := opts.System
	if opts.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	return messagesRequest{
		Model:       s.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
}

// Generate produces a text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp messagesResponse
	if err := s.api.PostJSON(ctx, "/v1/messages", s.request(prompt, opts, false), &resp); err != nil {
		return "", apiclient.Classify(err, domain.ErrLLMUnavailable)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content returned")
	}
	return b.String(), nil
}

// Stream produces a completion from content_block_delta events.
func (s *LLMService) Stream(ctx context.Context, prompt string, opts driven.GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := s.api.PostJSONStream(ctx, "/v1/messages", s.request(prompt, opts, true))
		if err != nil {
			yield("", apiclient.Classify(err, domain.ErrLLMUnavailable))
			return
		}
		defer resp.Body.Close()

		for ev, err := range apiclient.SSE(resp.Body) {
			if err != nil {
				yield("", fmt.Errorf("anthropic: read stream: %w", err))
				return
			}
			var payload streamEvent
			if err := json.Unmarshal(ev.Data, &payload); err != nil {
				yield("", fmt.Errorf("anthropic: decode stream event: %w", err))
				return
			}
			switch payload.Type {
			case "content_block_delta":
				if payload.Delta.Type != "text_delta" || payload.Delta.Text == "" {
					continue
				}
				if !yield(payload.Delta.Text, nil) {
					return
				}
			case "error":
				err := fmt.Errorf("anthropic: %s: %s", payload.Error.Type, payload.Error.Message)
				if payload.Error.Type == "overloaded_error" {
					err = &domain.RateLimitError{Provider: "anthropic", Message: payload.Error.Message}
				}
				yield("", err)
				return
			case "message_stop":
				return
			}
		}
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the /v1/models endpoint, which validates the API key without
// running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/v1/models"); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", apiclient.Classify(err, domain.ErrLLMUnavailable))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
