package services

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyServerAddr       = "server.addr"
	keyDataDir          = "data.dir"
	keyLoggingFormat    = "logging.format"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMRPS           = "llm.requests_per_second"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDimensions  = "embedding.dimensions"
	keySTTProvider      = "stt.provider"
	keySTTModel         = "stt.model"
	keySTTBaseURL       = "stt.base_url"
	keySTTAPIKey        = "stt.api_key"
	keySTTLanguage      = "stt.language"
	keySTTSerialize     = "stt.serialize"
	keyDiarProvider     = "diarization.provider"
	keyDiarCommand      = "diarization.command"
	keyDiarRefresh      = "diarization.refresh_every"
	keyDiarSerialize    = "diarization.serialize"
	keyConvMaxTurns     = "conversation.max_turns"
	keyConvMaxAge       = "conversation.max_age"
	keyConvCleanup      = "conversation.cleanup_interval"
	keyIndexBatchSize   = "index.batch_size"
	keyIndexInterval    = "index.interval"
	keyUploadMaxBytes   = "upload.max_bytes"
	keyVectorStore      = "vector.store"
	envPrefix           = "MINUTES_"
	envOpenAIAPIKey     = "OPENAI_API_KEY"
	envAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	defaultLocalBaseURL = "http://localhost:11434"
)

// EnvName returns the environment variable that overrides a config key,
// e.g. "llm.api_key" becomes MINUTES_LLM_API_KEY.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// settingsReader resolves keys against the environment first, then the
// config store.
type settingsReader struct {
	store  driven.ConfigStore
	getenv func(string) string
}

func (r settingsReader) raw(key string) (any, bool) {
	if v := r.getenv(EnvName(key)); v != "" {
		return v, true
	}
	if r.store == nil {
		return nil, false
	}
	return r.store.Get(key)
}

func (r settingsReader) str(key, def string) string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func (r settingsReader) int64(key string, def int64) int64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			logger.Warn("config: %s: invalid integer %q", key, n)
			return def
		}
		return parsed
	}
	return def
}

func (r settingsReader) int(key string, def int) int {
	return int(r.int64(key, int64(def)))
}

func (r settingsReader) float(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			logger.Warn("config: %s: invalid number %q", key, n)
			return def
		}
		return parsed
	}
	return def
}

func (r settingsReader) bool(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return def
		}
		return parsed
	}
	return def
}

// duration accepts Go duration strings ("90s", "1h") or integer seconds.
func (r settingsReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch d := v.(type) {
	case string:
		if secs, err := strconv.Atoi(d); err == nil {
			return time.Duration(secs) * time.Second
		}
		parsed, err := time.ParseDuration(d)
		if err != nil {
			logger.Warn("config: %s: invalid duration %q", key, d)
			return def
		}
		return parsed
	case int64:
		return time.Duration(d) * time.Second
	}
	return def
}

// LoadSettings reads settings from the config store, overlaying
// MINUTES_* environment variables and the provider API key variables.
// Missing keys take their defaults.
func LoadSettings(store driven.ConfigStore) domain.Settings {
	return loadSettings(store, os.Getenv)
}

func loadSettings(store driven.ConfigStore, getenv func(string) string) domain.Settings {
	d := domain.DefaultSettings()
	r := settingsReader{store: store, getenv: getenv}

	s := domain.Settings{
		Server:  domain.ServerSettings{Addr: r.str(keyServerAddr, d.Server.Addr)},
		Data:    domain.DataSettings{Dir: r.str(keyDataDir, d.Data.Dir)},
		Logging: domain.LoggingSettings{Format: r.str(keyLoggingFormat, d.Logging.Format)},
		LLM: domain.LLMSettings{
			Provider:          domain.AIProvider(r.str(keyLLMProvider, "")),
			Model:             r.str(keyLLMModel, ""),
			BaseURL:           r.str(keyLLMBaseURL, ""),
			APIKey:            r.str(keyLLMAPIKey, ""),
			RequestsPerSecond: r.float(keyLLMRPS, 0),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   domain.AIProvider(r.str(keyEmbedProvider, "")),
			Model:      r.str(keyEmbedModel, ""),
			BaseURL:    r.str(keyEmbedBaseURL, ""),
			APIKey:     r.str(keyEmbedAPIKey, ""),
			Dimensions: r.int(keyEmbedDimensions, 0),
		},
		STT: domain.STTSettings{
			Provider:  domain.STTProvider(r.str(keySTTProvider, string(d.STT.Provider))),
			Model:     r.str(keySTTModel, ""),
			BaseURL:   r.str(keySTTBaseURL, ""),
			APIKey:    r.str(keySTTAPIKey, ""),
			Language:  r.str(keySTTLanguage, ""),
			Serialize: r.bool(keySTTSerialize, false),
		},
		Diarization: domain.DiarizationSettings{
			Provider:     domain.DiarizationProvider(r.str(keyDiarProvider, string(d.Diarization.Provider))),
			Command:      r.str(keyDiarCommand, d.Diarization.Command),
			RefreshEvery: r.int(keyDiarRefresh, d.Diarization.RefreshEvery),
			Serialize:    r.bool(keyDiarSerialize, false),
		},
		Conversation: domain.ConversationSettings{
			MaxTurns:        r.int(keyConvMaxTurns, d.Conversation.MaxTurns),
			MaxAge:          r.duration(keyConvMaxAge, d.Conversation.MaxAge),
			CleanupInterval: r.duration(keyConvCleanup, d.Conversation.CleanupInterval),
		},
		Index: domain.IndexSettings{
			BatchSize: r.int(keyIndexBatchSize, d.Index.BatchSize),
			Interval:  r.duration(keyIndexInterval, d.Index.Interval),
		},
		Upload: domain.UploadSettings{MaxBytes: r.int64(keyUploadMaxBytes, d.Upload.MaxBytes)},
		Vector: domain.VectorSettings{Store: domain.VectorStoreKind(r.str(keyVectorStore, string(d.Vector.Store)))},
	}

	applyProviderDefaults(&s, getenv)

	if s.Data.Dir == "" && store != nil && store.Path() != "" {
		s.Data.Dir = filepath.Join(filepath.Dir(store.Path()), "data")
	}
	if s.Diarization.RefreshEvery <= 0 {
		s.Diarization.RefreshEvery = domain.DefaultDiarizationRefresh
	}
	if s.Conversation.MaxTurns <= 0 {
		s.Conversation.MaxTurns = domain.DefaultMaxTurns
	}
	return s
}

// applyProviderDefaults fills models, local base URLs and API keys from the
// provider-specific environment variables.
func applyProviderDefaults(s *domain.Settings, getenv func(string) string) {
	keyFor := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return getenv(envOpenAIAPIKey)
		case domain.AIProviderAnthropic:
			return getenv(envAnthropicAPIKey)
		}
		return ""
	}

	if s.LLM.Model == "" {
		s.LLM.Model = domain.DefaultLLMModels()[s.LLM.Provider]
	}
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = keyFor(s.LLM.Provider)
	}
	if s.LLM.Provider.IsLocal() && s.LLM.BaseURL == "" {
		s.LLM.BaseURL = defaultLocalBaseURL
	}

	if s.Embedding.Model == "" {
		s.Embedding.Model = domain.DefaultEmbeddingModels()[s.Embedding.Provider]
	}
	if s.Embedding.APIKey == "" {
		s.Embedding.APIKey = keyFor(s.Embedding.Provider)
	}
	if s.Embedding.Provider.IsLocal() && s.Embedding.BaseURL == "" {
		s.Embedding.BaseURL = defaultLocalBaseURL
	}
	if s.Embedding.Dimensions <= 0 {
		s.Embedding.Dimensions = domain.EmbeddingDimensions()[s.Embedding.Model]
	}

	if s.STT.Model == "" {
		s.STT.Model = domain.DefaultSTTModels()[s.STT.Provider]
	}
	if s.STT.Provider == domain.STTProviderOpenAI && s.STT.APIKey == "" {
		s.STT.APIKey = getenv(envOpenAIAPIKey)
	}
}

// SettingsService reads and updates persisted settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// aiValidator may be nil, in which case validation is skipped.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get returns the effective settings.
func (s *SettingsService) Get() domain.Settings {
	return loadSettings(s.configStore, s.getenv)
}

// Set stores one raw config value.
func (s *SettingsService) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("config key: %w", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

type configValue struct {
	key   string
	value any
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %q does not support embeddings: %w", provider, domain.ErrInvalidInput)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(envOpenAIAPIKey) == "" {
		return fmt.Errorf("API key required for %s: %w", provider, domain.ErrInvalidInput)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.configStore.GetString(keyEmbedBaseURL)
		if baseURL == "" {
			baseURL = defaultLocalBaseURL
		}
	}

	values := []configValue{
		{keyEmbedProvider, provider.String()},
		{keyEmbedModel, model},
		{keyEmbedBaseURL, baseURL},
	}
	if apiKey != "" {
		values = append(values, configValue{keyEmbedAPIKey, apiKey})
	}
	if dims, ok := domain.EmbeddingDimensions()[model]; ok {
		values = append(values, configValue{keyEmbedDimensions, dims})
	}

	for _, v := range values {
		if err := s.Set(v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider %q: %w", provider, domain.ErrInvalidInput)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}

	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.configStore.GetString(keyLLMBaseURL)
		if baseURL == "" {
			baseURL = defaultLocalBaseURL
		}
	}

	if err := s.Set(keyLLMProvider, provider.String()); err != nil {
		return err
	}
	if err := s.Set(keyLLMModel, model); err != nil {
		return err
	}
	if err := s.Set(keyLLMBaseURL, baseURL); err != nil {
		return err
	}
	if apiKey != "" {
		return s.Set(keyLLMAPIKey, apiKey)
	}
	return nil
}

// ValidateEmbeddingConfig pings the configured embedding provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings := s.Get()
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig pings the configured LLM provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings := s.Get()
	return s.aiValidator.ValidateLLM(&settings.LLM)
}
