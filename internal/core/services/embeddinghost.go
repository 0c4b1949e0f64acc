package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure EmbeddingHost implements the interface.
var _ driven.EmbeddingService = (*EmbeddingHost)(nil)

// EmbeddingHost owns the process-wide embedding model.
//
// Preload starts loading in the background so that the first request only
// waits if startup has not finished. When the background load fails, the
// next call retries synchronously.
type EmbeddingHost struct {
	load Loader[driven.EmbeddingService]

	mu    sync.Mutex
	svc   driven.EmbeddingService
	ready chan struct{}
}

// NewEmbeddingHost wraps a loader.
func NewEmbeddingHost(load Loader[driven.EmbeddingService]) *EmbeddingHost {
	return &EmbeddingHost{load: load}
}

// Preload starts loading the model in a background goroutine.
// Calling it more than once has no effect.
func (h *EmbeddingHost) Preload(ctx context.Context) {
	h.mu.Lock()
	if h.ready != nil {
		h.mu.Unlock()
		return
	}
	h.ready = make(chan struct{})
	h.mu.Unlock()

	go func() {
		defer close(h.ready)
		if _, err := h.loadOnce(ctx); err != nil {
			logger.Warn("Embedding model preload failed: %v", err)
			return
		}
		logger.Info("Embedding model ready")
	}()
}

// get waits for any background load, then returns the model, loading it if needed.
func (h *EmbeddingHost) get(ctx context.Context) (driven.EmbeddingService, error) {
	h.mu.Lock()
	ready := h.ready
	h.mu.Unlock()

	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return h.loadOnce(ctx)
}

// loadOnce returns the cached model or loads it under the mutex.
func (h *EmbeddingHost) loadOnce(ctx context.Context) (driven.EmbeddingService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.svc != nil {
		return h.svc, nil
	}
	svc, err := h.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	h.svc = svc
	return svc, nil
}

// Embed generates a vector embedding for the given text.
func (h *EmbeddingHost) Embed(ctx context.Context, text string) ([]float32, error) {
	svc, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts.
func (h *EmbeddingHost) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	return svc.EmbedBatch(ctx, texts)
}

// Dimensions returns the embedding width, or 0 if the model cannot be loaded.
func (h *EmbeddingHost) Dimensions() int {
	svc, err := h.get(context.Background())
	if err != nil {
		return 0
	}
	return svc.Dimensions()
}

// ModelName returns the model name, or "" if the model cannot be loaded.
func (h *EmbeddingHost) ModelName() string {
	svc, err := h.get(context.Background())
	if err != nil {
		return ""
	}
	return svc.ModelName()
}

// Ping validates the model is reachable.
func (h *EmbeddingHost) Ping(ctx context.Context) error {
	svc, err := h.get(ctx)
	if err != nil {
		return err
	}
	return svc.Ping(ctx)
}

// Close releases the loaded model.
func (h *EmbeddingHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.svc == nil {
		return nil
	}
	err := h.svc.Close()
	h.svc = nil
	return err
}
