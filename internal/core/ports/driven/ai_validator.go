package driven

import "github.com/custodia-labs/minutes/internal/core/domain"

// AIConfigValidator checks model provider settings by contacting the provider.
type AIConfigValidator interface {
	// ValidateEmbedding returns nil when embeddings are valid or not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM returns nil when the LLM is valid or not configured.
	ValidateLLM(config *domain.LLMSettings) error
}
