package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_IsValid(t *testing.T) {
	assert.True(t, AIProviderOllama.IsValid())
	assert.True(t, AIProviderOpenAI.IsValid())
	assert.True(t, AIProviderAnthropic.IsValid())
	assert.False(t, AIProvider("").IsValid())
	assert.False(t, AIProvider("cohere").IsValid())
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}, true},
		{"anthropic has no embeddings", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, 5, s.Diarization.RefreshEvery)
	assert.Equal(t, DefaultMaxTurns, s.Conversation.MaxTurns)
	assert.Equal(t, 100, s.Index.BatchSize)
	assert.Equal(t, int64(500*1024*1024), s.Upload.MaxBytes)
	assert.Equal(t, VectorStoreSQLite, s.Vector.Store)
	assert.False(t, s.LLM.IsConfigured())
	assert.False(t, s.Embedding.IsConfigured())
}

func TestProviders_IsValid(t *testing.T) {
	assert.True(t, STTProviderFasterWhisper.IsValid())
	assert.False(t, STTProvider("vosk").IsValid())
	assert.True(t, DiarizationProviderPyannote.IsValid())
	assert.False(t, DiarizationProvider("").IsValid())
}

func TestEmbeddingDimensions(t *testing.T) {
	dims := EmbeddingDimensions()
	assert.Equal(t, 384, dims["all-minilm"])
	assert.Equal(t, 1536, dims["text-embedding-3-small"])
	assert.Contains(t, DefaultEmbeddingModels(), AIProviderOllama)
	assert.Len(t, AllLLMProviders(), 3)
	assert.Len(t, AllEmbeddingProviders(), 2)
}

func TestSchedulerTasks(t *testing.T) {
	s := DefaultSettings()
	tasks := SchedulerTasks(s)
	assert.Equal(t, map[string]time.Duration{TaskIDConversationCleanup: 10 * time.Minute}, tasks)

	s.Index.Interval = time.Hour
	s.Conversation.CleanupInterval = 0
	assert.Equal(t, map[string]time.Duration{TaskIDHistoryReindex: time.Hour}, SchedulerTasks(s))
}
