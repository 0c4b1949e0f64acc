package driving

import "context"

// Scheduler manages background tasks like conversation cleanup and history re-indexing.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}

// Watcher reacts to changes made outside the running services.
type Watcher interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
}
