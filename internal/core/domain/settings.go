package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API or any OpenAI-compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// STTProvider identifies a speech-to-text backend.
type STTProvider string

// Available speech-to-text backends.
const (
	STTProviderNone          STTProvider = "none"
	STTProviderOpenAI        STTProvider = "openai"
	STTProviderFasterWhisper STTProvider = "faster-whisper"
)

// IsValid returns true if the backend is recognised.
func (p STTProvider) IsValid() bool {
	switch p {
	case STTProviderNone, STTProviderOpenAI, STTProviderFasterWhisper:
		return true
	default:
		return false
	}
}

// DiarizationProvider identifies a diarization backend.
type DiarizationProvider string

// Available diarization backends.
const (
	DiarizationProviderNone     DiarizationProvider = "none"
	DiarizationProviderPyannote DiarizationProvider = "pyannote"
)

// IsValid returns true if the backend is recognised.
func (p DiarizationProvider) IsValid() bool {
	return p == DiarizationProviderNone || p == DiarizationProviderPyannote
}

// VectorStoreKind selects the vector store implementation.
type VectorStoreKind string

// Vector store implementations.
const (
	VectorStoreSQLite VectorStoreKind = "sqlite"
	VectorStoreMemory VectorStoreKind = "memory"
)

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Addr string
}

// DataSettings locates persisted state.
type DataSettings struct {
	// Dir holds history/ and the vector database.
	Dir string
}

// LoggingSettings configures log output.
type LoggingSettings struct {
	// Format is "text" or "json".
	Format string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the known model width when positive.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerSecond throttles outgoing calls when positive.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// STTSettings configures speech-to-text.
type STTSettings struct {
	Provider STTProvider
	Model    string
	BaseURL  string
	APIKey   string

	// Language is the default language hint; empty means auto-detect.
	Language string

	// Serialize guards the model with a mutex across sessions.
	Serialize bool
}

// DiarizationSettings configures speaker diarization.
type DiarizationSettings struct {
	Provider DiarizationProvider

	// Command is the python interpreter used for the pyannote helper.
	Command string

	// RefreshEvery re-runs diarization every N chunks.
	RefreshEvery int

	// Serialize guards the model with a mutex across sessions.
	Serialize bool
}

// ConversationSettings configures conversation memory.
type ConversationSettings struct {
	MaxTurns        int
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

// IndexSettings configures embedding indexing.
type IndexSettings struct {
	BatchSize int

	// Interval schedules a background re-index when positive.
	Interval time.Duration
}

// UploadSettings configures the upload path.
type UploadSettings struct {
	MaxBytes int64
}

// VectorSettings configures the vector store.
type VectorSettings struct {
	Store VectorStoreKind
}

// Settings holds all application settings.
type Settings struct {
	Server       ServerSettings
	Data         DataSettings
	Logging      LoggingSettings
	LLM          LLMSettings
	Embedding    EmbeddingSettings
	STT          STTSettings
	Diarization  DiarizationSettings
	Conversation ConversationSettings
	Index        IndexSettings
	Upload       UploadSettings
	Vector       VectorSettings
}

// Defaults.
const (
	DefaultServerAddr         = ":8080"
	DefaultDiarizationRefresh = 5
	DefaultIndexBatchSize     = 100
)

// DefaultUploadMaxBytes rejects uploads above 500 MiB.
const DefaultUploadMaxBytes int64 = 500 << 20

// DefaultSettings returns settings with sensible defaults.
// AI features are left unconfigured; the user enables them in config.toml.
func DefaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Addr: DefaultServerAddr},
		Logging: LoggingSettings{Format: "text"},
		STT:     STTSettings{Provider: STTProviderNone},
		Diarization: DiarizationSettings{
			Provider:     DiarizationProviderNone,
			Command:      "python3",
			RefreshEvery: DefaultDiarizationRefresh,
		},
		Conversation: ConversationSettings{
			MaxTurns:        DefaultMaxTurns,
			MaxAge:          time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Index:  IndexSettings{BatchSize: DefaultIndexBatchSize},
		Upload: UploadSettings{MaxBytes: DefaultUploadMaxBytes},
		Vector: VectorSettings{Store: VectorStoreSQLite},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// DefaultSTTModels returns default models for each speech-to-text backend.
func DefaultSTTModels() map[STTProvider]string {
	return map[STTProvider]string{
		STTProviderOpenAI:        "whisper-1",
		STTProviderFasterWhisper: "base",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
