package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/logger"
)

// RetryPolicy bounds cooperative backoff on upstream rate limits.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	// BaseDelay is the first wait when the upstream gives no retry hint.
	BaseDelay time.Duration

	// MaxWait is the longest single wait; longer hints fail immediately.
	MaxWait time.Duration
}

// DefaultRetryPolicy waits at most 10s per attempt, three attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxWait: 10 * time.Second}
}

// delay returns how long to wait before the given retry attempt (1-based),
// and false when err is not retryable under the policy.
func (p RetryPolicy) delay(err error, attempt int) (time.Duration, bool) {
	if !errors.Is(err, domain.ErrRateLimited) || attempt >= p.MaxAttempts {
		return 0, false
	}
	wait := p.BaseDelay << (attempt - 1)
	var rle *domain.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		wait = rle.RetryAfter
	}
	if wait > p.MaxWait {
		return 0, false
	}
	return wait, true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRateLimitRetry calls fn, waiting and retrying while the upstream
// reports a rate limit within the policy's bounds.
func withRateLimitRetry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		wait, ok := p.delay(err, attempt)
		if !ok {
			return v, err
		}
		logger.Warn("Rate limited, retrying in %s (attempt %d/%d)", wait, attempt+1, p.MaxAttempts)
		if serr := sleep(ctx, wait); serr != nil {
			return v, err
		}
	}
}
