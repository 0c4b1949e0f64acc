package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID         string
	StartedAt      time.Time
	EndedAt        time.Time
	Success        bool
	Error          string
	ItemsProcessed int
}

// Task IDs for built-in tasks.
const (
	TaskIDConversationCleanup = "conversation-cleanup"
	TaskIDHistoryReindex      = "history-reindex"
)

// SchedulerTasks derives the task intervals from settings.
// Tasks with a non-positive interval are omitted.
func SchedulerTasks(s Settings) map[string]time.Duration {
	tasks := make(map[string]time.Duration, 2)
	if s.Conversation.CleanupInterval > 0 {
		tasks[TaskIDConversationCleanup] = s.Conversation.CleanupInterval
	}
	if s.Index.Interval > 0 {
		tasks[TaskIDHistoryReindex] = s.Index.Interval
	}
	return tasks
}
