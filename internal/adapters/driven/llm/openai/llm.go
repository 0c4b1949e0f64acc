// Package openai provides an LLM service adapter using the OpenAI chat
// completions API or any compatible server.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/custodia-labs/minutes/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// streamDone terminates an OpenAI event stream.
const streamDone = "[DONE]"

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout bounds Generate calls (default: 120s). Streams are bounded
	// by the caller's context only.
	Timeout time.Duration

	// RequestsPerSecond throttles requests when positive.
	RequestsPerSecond float64
}

// LLMService provides LLM operations using the OpenAI API.
type LLMService struct {
	api     *apiclient.Client
	model   string
	timeout time.Duration
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api: apiclient.New(apiclient.Config{
			Provider:          "openai",
			BaseURL:           cfg.BaseURL,
			Header:            http.Header{"Authorization": {"Bearer " + cfg.APIKey}},
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (s *LLMService) request(prompt string, opts driven.GenerateOptions, stream bool) chatRequest {
	req := chatRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if opts.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

// Generate produces a text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp chatResponse
	if err := s.api.PostJSON(ctx, "/chat/completions", s.request(prompt, opts, false), &resp); err != nil {
		return "", apiclient.Classify(err, domain.ErrLLMUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream produces a completion incrementally from server-sent events.
func (s *LLMService) Stream(ctx context.Context, prompt string, opts driven.GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := s.api.PostJSONStream(ctx, "/chat/completions", s.request(prompt, opts, true))
		if err != nil {
			yield("", apiclient.Classify(err, domain.ErrLLMUnavailable))
			return
		}
		defer resp.Body.Close()

		for ev, err := range apiclient.SSE(resp.Body) {
			if err != nil {
				yield("", fmt.Errorf("openai: read stream: %w", err))
				return
			}
			if string(ev.Data) == streamDone {
				return
			}
			var chunk chatChunk
			if err := json.Unmarshal(ev.Data, &chunk); err != nil {
				yield("", fmt.Errorf("openai: decode stream chunk: %w", err))
				return
			}
			for _, c := range chunk.Choices {
				if c.Delta.Content == "" {
					continue
				}
				if !yield(c.Delta.Content, nil) {
					return
				}
			}
		}
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the /models endpoint, which validates the API key without
// running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/models"); err != nil {
		return fmt.Errorf("openai: ping failed: %w", apiclient.Classify(err, domain.ErrLLMUnavailable))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
