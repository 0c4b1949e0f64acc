package driving

import "github.com/custodia-labs/minutes/internal/core/domain"

// SettingsService reads and updates persisted settings.
type SettingsService interface {
	// Get returns the effective settings, environment overrides included.
	Get() domain.Settings

	// Set stores one raw config value under a dotted key.
	Set(key string, value any) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig pings the configured LLM provider.
	ValidateLLMConfig() error
}
