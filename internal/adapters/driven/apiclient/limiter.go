package apiclient

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing requests with a token bucket and pauses all
// requests after the upstream reports a rate limit.
type Limiter struct {
	bucket *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// NewLimiter allows rps requests per second with a burst of one second's
// worth. A non-positive rps disables the bucket; backoff still applies.
func NewLimiter(rps float64) *Limiter {
	l := &Limiter{}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		l.bucket = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if l.bucket == nil {
		return nil
	}
	return l.bucket.Wait(ctx)
}

// Backoff holds further requests for d. Shorter backoffs never shorten
// an existing one.
func (l *Limiter) Backoff(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if at := time.Now().Add(d); at.After(l.retryAt) {
		l.retryAt = at
	}
}

// ParseRetryAfter reads a Retry-After header given as seconds or an HTTP date.
// Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
