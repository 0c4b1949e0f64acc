// Package ai provides factory functions for creating model adapters from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	analysisllm "github.com/custodia-labs/minutes/internal/adapters/driven/analysis/llm"
	"github.com/custodia-labs/minutes/internal/adapters/driven/diarization/noop"
	"github.com/custodia-labs/minutes/internal/adapters/driven/diarization/pyannote"
	ollamaembed "github.com/custodia-labs/minutes/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/minutes/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/minutes/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/minutes/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/minutes/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/minutes/internal/adapters/driven/stt/fasterwhisper"
	openaistt "github.com/custodia-labs/minutes/internal/adapters/driven/stt/openai"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// configHint points users at the file that fixes a provider problem.
const configHint = "check the %s section of config.toml"

// TranscriberLoader loads a speech-to-text backend on first use.
type TranscriberLoader = func(ctx context.Context) (driven.Transcriber, error)

// DiarizerLoader loads a diarization backend on first use.
type DiarizerLoader = func(ctx context.Context) (driven.Diarizer, error)

// EmbeddingLoader creates and validates the embedding service on first use.
type EmbeddingLoader = func(ctx context.Context) (driven.EmbeddingService, error)

// InitResult contains the model adapters built from settings.
// Nil members are features that are not configured.
type InitResult struct {
	LLMService  driven.LLMService
	Extractor   driven.AnalysisExtractor
	Embedding   EmbeddingLoader
	Transcriber TranscriberLoader
	Diarizer    DiarizerLoader
	Warnings    []string // Non-fatal problems found while building.
}

// Init builds every model adapter named by settings. It never fails:
// problems disable the affected feature and are reported as warnings.
func Init(ctx context.Context, settings *domain.Settings, prompts driven.PromptStore) *InitResult {
	r := &InitResult{
		Embedding:   NewEmbeddingLoader(&settings.Embedding),
		Transcriber: NewTranscriberLoader(&settings.STT),
		Diarizer:    NewDiarizerLoader(&settings.Diarization),
	}

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		r.warn("LLM disabled: %v (%s)", err, fmt.Sprintf(configHint, "[llm]"))
	}
	if llm != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := llm.Ping(pingCtx); err != nil {
			r.warn("LLM %s is not reachable yet: %v", llm.ModelName(), err)
		}
		cancel()
		r.LLMService = llm
		r.Extractor = analysisllm.NewExtractor(llm, prompts)
	}
	return r
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.Warn("%s", msg)
}

// Close releases the LLM service. Loaded models are owned by their hosts.
func (r *InitResult) Close() {
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// NewEmbeddingLoader returns a loader that creates and pings the embedding
// service, or nil when embeddings are not configured.
func NewEmbeddingLoader(settings *domain.EmbeddingSettings) EmbeddingLoader {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	return func(ctx context.Context) (driven.EmbeddingService, error) {
		return CreateAndValidateEmbeddingService(ctx, settings)
	}
}

// NewTranscriberLoader returns a loader for the configured speech-to-text
// backend, or nil when none is configured.
func NewTranscriberLoader(settings *domain.STTSettings) TranscriberLoader {
	if settings == nil {
		return nil
	}
	switch settings.Provider {
	case domain.STTProviderOpenAI:
		return func(context.Context) (driven.Transcriber, error) {
			if settings.APIKey == "" && settings.BaseURL == "" {
				return nil, fmt.Errorf("openai speech-to-text needs an API key or a base_url (%s)",
					fmt.Sprintf(configHint, "[stt]"))
			}
			return openaistt.New(openaistt.Config{
				APIKey:  settings.APIKey,
				BaseURL: settings.BaseURL,
				Model:   settings.Model,
			}), nil
		}
	case domain.STTProviderFasterWhisper:
		return func(ctx context.Context) (driven.Transcriber, error) {
			return fasterwhisper.Load(ctx, fasterwhisper.Config{Model: settings.Model})
		}
	default:
		return nil
	}
}

// NewDiarizerLoader returns a loader for the configured diarization backend.
// Without a backend every word goes to the fallback speaker.
func NewDiarizerLoader(settings *domain.DiarizationSettings) DiarizerLoader {
	if settings != nil && settings.Provider == domain.DiarizationProviderPyannote {
		return func(ctx context.Context) (driven.Diarizer, error) {
			return pyannote.Load(ctx, pyannote.Config{Python: settings.Command})
		}
	}
	return func(context.Context) (driven.Diarizer, error) {
		return noop.Diarizer{}, nil
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when embeddings are not configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (%s)", domain.ErrEmbeddingUnavailable, err, fmt.Sprintf(configHint, "[embedding]"))
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		if settings.APIKey == "" {
			return nil, nil
		}
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if settings.Provider.IsValid() && !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}

func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}
