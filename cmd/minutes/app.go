package main

import (
	"context"
	"path/filepath"

	"github.com/custodia-labs/minutes/internal/adapters/driven/ai"
	"github.com/custodia-labs/minutes/internal/adapters/driven/config/file"
	"github.com/custodia-labs/minutes/internal/adapters/driven/storage/history"
	"github.com/custodia-labs/minutes/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/minutes/internal/adapters/driven/storage/spool"
	"github.com/custodia-labs/minutes/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/minutes/internal/adapters/driving/cli"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/services"
	"github.com/custodia-labs/minutes/internal/logger"
)

// build wires settings, stores, model hosts and services.
// Models are loaded lazily, so commands that never touch them stay fast.
func build(ctx context.Context, configDir string) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	settings := services.LoadSettings(configStore)
	logger.SetFormat(settings.Logging.Format)
	logger.Debug("Config: %s, data: %s", configStore.Path(), settings.Data.Dir)

	prompts, err := file.NewPromptStore(filepath.Join(filepath.Dir(configStore.Path()), "prompts"))
	if err != nil {
		return nil, err
	}
	historyStore, err := history.New(filepath.Join(settings.Data.Dir, "history"))
	if err != nil {
		return nil, err
	}
	audioSpool, err := spool.New("")
	if err != nil {
		return nil, err
	}

	var closers []func() error
	var (
		vectors    driven.VectorStore
		schedStore driven.SchedulerStore
	)
	switch settings.Vector.Store {
	case domain.VectorStoreMemory:
		vectors = memory.NewVectorStore()
		schedStore = memory.NewSchedulerStore()
	default:
		db, err := sqlite.Open(settings.Data.Dir)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		vectors = db.VectorStore()
		schedStore = db.SchedulerStore()
	}

	models := ai.Init(ctx, &settings, prompts)
	closers = append(closers, func() error {
		models.Close()
		return nil
	})

	var (
		embedder  driven.EmbeddingService
		embedHost *services.EmbeddingHost
	)
	if models.Embedding != nil {
		embedHost = services.NewEmbeddingHost(services.Loader[driven.EmbeddingService](models.Embedding))
		embedder = embedHost
		closers = append(closers, embedHost.Close)
	}

	index := services.NewIndexService(historyStore, embedder, vectors, settings.Index.BatchSize)
	historyService := services.NewHistoryService(historyStore, index)
	search := services.NewSearchService(embedder, vectors)
	conversations := services.NewConversationMemory(settings.Conversation.MaxTurns)
	rag := services.NewRAGService(search, models.LLMService, prompts, conversations)

	speech := services.NewModelHost(models.Transcriber, models.Diarizer, services.ModelHostOptions{
		SerializeSTT:      settings.STT.Serialize,
		SerializeDiarizer: settings.Diarization.Serialize,
	})
	closers = append(closers, speech.Close)
	transcription := services.NewTranscriptionService(speech, services.NewSessionBuffers(audioSpool),
		services.TranscriptionOptions{
			RefreshEvery: settings.Diarization.RefreshEvery,
			Language:     settings.STT.Language,
		})
	ingest := services.NewIngestService(historyService, models.Extractor, speech, audioSpool, settings.Upload.MaxBytes)

	svc := &cli.Services{
		History:       historyService,
		Search:        search,
		Ingest:        ingest,
		RAG:           rag,
		Conversations: conversations,
		Transcription: transcription,
		Settings:      services.NewSettingsService(configStore, ai.ConfigValidator{}),
		Close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					logger.Warn("shutdown: %v", err)
				}
			}
		},
	}

	scheduler := services.NewScheduler(schedStore)
	if embedder != nil {
		svc.Index = index
		svc.Watcher = services.NewHistoryWatcher(index)
		svc.Warmup = embedHost.Preload
		scheduler.RegisterDefaults(settings, conversations, index)
	} else {
		scheduler.RegisterDefaults(settings, conversations, nil)
	}
	svc.Scheduler = scheduler

	return svc, nil
}
