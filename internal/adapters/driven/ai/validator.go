package ai

import (
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = ConfigValidator{}

// ConfigValidator pings providers for the settings service and `minutes config check`.
type ConfigValidator struct{}

// ValidateEmbedding creates the embedding service and pings it.
func (ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(config)
}

// ValidateLLM creates the LLM service and pings it.
func (ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	return ValidateLLMConfig(config)
}
