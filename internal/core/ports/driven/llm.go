package driven

import (
	"context"
	"iter"
)

// LLMService provides language model operations for query expansion, answering
// and meeting analysis.
// This is an optional service - when nil, those features return a fixed
// "not configured" answer.
//
// Implementations may include:
//   - OpenAI (and any OpenAI-compatible server)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Stream produces a completion incrementally. Each yielded string is a
	// non-empty chunk of the answer; a non-nil error ends the sequence.
	// Consumers stop early by breaking out of the range loop.
	Stream(ctx context.Context, prompt string, opts GenerateOptions) iter.Seq2[string, error]

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// System is an optional system instruction.
	System string

	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}
