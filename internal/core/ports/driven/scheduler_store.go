package driven

import (
	"context"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// SchedulerStore keeps background task state and run history across
// restarts.
type SchedulerStore interface {
	// GetTask returns the task with id, or nil and no error when unknown.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every stored task.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask inserts or replaces a task by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task and its run history.
	DeleteTask(ctx context.Context, taskID string) error

	// RecordResult appends one run of a task.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit runs of a task, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep runs per task and drops the rest.
	PruneHistory(ctx context.Context, keep int) error
}
