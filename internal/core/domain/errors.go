package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation failures are reported to the caller and never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates an uploaded file extension is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrFileTooLarge indicates an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// Resource Errors.

	// ErrResourceUnavailable indicates a required dependency is not installed or failed to load.
	// Callers must treat the feature as disabled.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrSTTUnavailable indicates the speech-to-text model could not be loaded.
	ErrSTTUnavailable = fmt.Errorf("speech-to-text model: %w", ErrResourceUnavailable)

	// ErrDiarizerUnavailable indicates the diarization model could not be loaded.
	ErrDiarizerUnavailable = fmt.Errorf("diarization model: %w", ErrResourceUnavailable)

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic search and indexing are disabled without embeddings.
	ErrEmbeddingUnavailable = fmt.Errorf("embedding service: %w", ErrResourceUnavailable)

	// ErrVectorStoreUnavailable indicates the vector store is not configured.
	ErrVectorStoreUnavailable = fmt.Errorf("vector store: %w", ErrResourceUnavailable)

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Query expansion, answering and analysis extraction are disabled.
	ErrLLMUnavailable = fmt.Errorf("LLM service: %w", ErrResourceUnavailable)

	// Upstream Errors.

	// ErrRateLimited indicates the upstream quota was exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrGenerationFailed indicates the LLM failed while producing an answer.
	// It is distinct from an empty retrieval, which is not an error.
	ErrGenerationFailed = errors.New("generation failed")

	// Session Errors.

	// ErrSessionExists indicates a streaming session id is already open.
	ErrSessionExists = errors.New("session already open")

	// ErrSessionNotFound indicates a streaming session id is not open.
	ErrSessionNotFound = errors.New("session not found")

	// Vector Store Errors.

	// ErrDimensionMismatch indicates an embedding width differs from the collection width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// RateLimitError reports an upstream quota exhaustion.
// It matches ErrRateLimited via errors.Is.
type RateLimitError struct {
	// Provider names the upstream service (e.g. "openai").
	Provider string

	// RetryAfter is the suggested wait before retrying; zero when unknown.
	RetryAfter time.Duration

	// Message is the upstream error text, reported verbatim.
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limited", e.Provider)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Unwrap returns ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// rateLimitMessages holds the user-visible quota message per language.
var rateLimitMessages = map[string]string{
	"en": "The AI service is temporarily over its usage limit. Please try again in a moment.",
	"es": "El servicio de IA ha superado temporalmente su límite de uso. Inténtalo de nuevo en un momento.",
	"fr": "Le service d'IA a temporairement dépassé sa limite d'utilisation. Veuillez réessayer dans un instant.",
	"de": "Der KI-Dienst hat sein Nutzungslimit vorübergehend überschritten. Bitte versuche es gleich noch einmal.",
	"pt": "O serviço de IA excedeu temporariamente o limite de uso. Tente novamente em instantes.",
	"ja": "AIサービスが一時的に利用上限に達しています。しばらくしてから再度お試しください。",
	"zh": "AI 服务暂时超出使用限制，请稍后再试。",
}

// RateLimitMessage returns the localized quota message for a language tag.
// Region suffixes are ignored ("pt-BR" -> "pt"); unknown languages fall back to English.
func RateLimitMessage(lang string) string {
	if len(lang) > 2 {
		lang = lang[:2]
	}
	if msg, ok := rateLimitMessages[lang]; ok {
		return msg
	}
	return rateLimitMessages["en"]
}
