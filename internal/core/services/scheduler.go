package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// TaskFunc runs one execution of a scheduled task and reports how many
// items it processed.
type TaskFunc func(ctx context.Context) (int, error)

// taskDef is a registered task.
type taskDef struct {
	name     string
	interval time.Duration
	run      TaskFunc
}

// Scheduler manages background task execution.
// Task state is persisted so that intervals survive restarts.
type Scheduler struct {
	store driven.SchedulerStore
	tick  time.Duration

	mu      sync.Mutex
	tasks   map[string]taskDef
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler that checks for due tasks every minute.
func NewScheduler(store driven.SchedulerStore) *Scheduler {
	return &Scheduler{
		store: store,
		tick:  time.Minute,
		tasks: make(map[string]taskDef),
	}
}

// Register adds a task. Tasks with a non-positive interval are ignored.
func (s *Scheduler) Register(id, name string, interval time.Duration, run TaskFunc) {
	if interval <= 0 || run == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = taskDef{name: name, interval: interval, run: run}
}

// RegisterDefaults wires the built-in tasks for the given settings.
// memory and index may be nil, which skips the corresponding task.
func (s *Scheduler) RegisterDefaults(settings domain.Settings, memory *ConversationMemory, index *IndexService) {
	intervals := domain.SchedulerTasks(settings)
	if memory != nil {
		maxAge := settings.Conversation.MaxAge
		s.Register(domain.TaskIDConversationCleanup, "Conversation Cleanup",
			intervals[domain.TaskIDConversationCleanup],
			func(context.Context) (int, error) {
				return memory.Cleanup(maxAge), nil
			})
	}
	if index != nil {
		s.Register(domain.TaskIDHistoryReindex, "History Re-index",
			intervals[domain.TaskIDHistoryReindex],
			func(ctx context.Context) (int, error) {
				return index.IndexAll(ctx, false)
			})
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures all registered tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	s.mu.Lock()
	defs := make(map[string]taskDef, len(s.tasks))
	for id, def := range s.tasks {
		defs[id] = def
	}
	s.mu.Unlock()

	for id, def := range defs {
		if err := s.ensureTask(ctx, id, def.name, def.interval); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, interval time.Duration) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: interval,
			Enabled:  true,
			NextRun:  time.Now().Add(interval),
		}
	} else if task.Interval != interval {
		task.Interval = interval
		task.NextRun = time.Now().Add(interval)
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes a single task in its own goroutine.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	def, ok := s.tasks[task.ID]
	s.mu.Unlock()
	if !ok {
		logger.Debug("scheduler: no runner for task %s", task.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		items, err := def.run(ctx)
		result.ItemsProcessed = items
		result.EndedAt = time.Now()
		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
			logger.Warn("scheduler: task %s failed: %v", task.ID, err)
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
			logger.Debug("scheduler: task %s processed %d items", task.ID, items)
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(ctx, 100); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}
