package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

var _ driving.Watcher = (*HistoryWatcher)(nil)

// DefaultWatchDebounce is how long the watcher waits after the last write to
// a record before indexing it.
const DefaultWatchDebounce = 500 * time.Millisecond

// HistoryWatcher indexes analysis records that appear in the history
// directory without going through HistoryService.Record, such as files
// copied in by hand or written by another process.
type HistoryWatcher struct {
	dir      string
	load     func(id string) (*domain.MeetingAnalysis, error)
	index    *IndexService
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewHistoryWatcher creates a watcher over the directory of the given index
// service's history store.
func NewHistoryWatcher(index *IndexService) *HistoryWatcher {
	return &HistoryWatcher{
		dir:      index.history.Dir(),
		load:     index.history.Load,
		index:    index,
		debounce: DefaultWatchDebounce,
		pending:  make(map[string]*time.Timer),
	}
}

// recordID maps a filesystem event to the analysis ID it touches.
// Returns false for events that should not trigger indexing.
func recordID(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || filepath.Ext(base) != ".json" {
		return "", false
	}
	return strings.TrimSuffix(base, ".json"), true
}

// Run watches until ctx is cancelled.
func (w *HistoryWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	logger.Debug("Watching %s for new analyses", w.dir)

	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if id, ok := recordID(event); ok {
				w.schedule(ctx, id)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("history watcher: %v", err)
		}
	}
}

// schedule (re)arms the debounce timer for id.
func (w *HistoryWatcher) schedule(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[id]; ok {
		t.Stop()
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		w.indexRecord(ctx, id)
	})
}

func (w *HistoryWatcher) indexRecord(ctx context.Context, id string) {
	if ctx.Err() != nil {
		return
	}
	if w.index.ready() == nil {
		if have, err := w.index.vectors.Has(ctx, []string{id}); err == nil && have[id] {
			return
		}
	}
	analysis, err := w.load(id)
	if err != nil {
		logger.Debug("history watcher: skip %s: %v", id, err)
		return
	}
	if _, err := w.index.IndexOne(ctx, analysis); err != nil {
		logger.Warn("history watcher: index %s: %v", id, err)
	}
}

func (w *HistoryWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
}
