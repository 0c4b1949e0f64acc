// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/custodia-labs/minutes/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout bounds Generate calls (default: 120s).
	Timeout time.Duration
}

// LLMService provides LLM operations using Ollama.
type LLMService struct {
	api     *apiclient.Client
	model   string
	timeout time.Duration
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *options      `json:"options,omitempty"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is both the whole reply and one line of a stream.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
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
		api:     apiclient.New(apiclient.Config{Provider: "ollama", BaseURL: cfg.BaseURL}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (s *LLMService) request(prompt string, opts driven.GenerateOptions, stream bool) chatRequest {
	req := chatRequest{
		Model:   s.model,
		Stream:  stream,
		Options: &options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
	}
	if opts.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	if opts.JSON {
		req.Format = "json"
	}
	return req
}

// Generate produces a text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp chatResponse
	if err := s.api.PostJSON(ctx, "/api/chat", s.request(prompt, opts, false), &resp); err != nil {
		return "", apiclient.Classify(err, domain.ErrLLMUnavailable)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	return resp.Message.Content, nil
}

// Stream produces a completion from Ollama's newline-delimited JSON stream.
func (s *LLMService) Stream(ctx context.Context, prompt string, opts driven.GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := s.api.PostJSONStream(ctx, "/api/chat", s.request(prompt, opts, true))
		if err != nil {
			yield("", apiclient.Classify(err, domain.ErrLLMUnavailable))
			return
		}
		defer resp.Body.Close()

		for line, err := range apiclient.Lines(resp.Body) {
			if err != nil {
				yield("", fmt.Errorf("ollama: read stream: %w", err))
				return
			}
			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", fmt.Errorf("ollama: decode stream chunk: %w", err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("ollama: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" && !yield(chunk.Message.Content, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks /api/tags, which validates connectivity without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/api/tags"); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", apiclient.Classify(err, domain.ErrLLMUnavailable))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
