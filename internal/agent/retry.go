package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy controls how many attempts an operation gets and how long to
// wait between them.
//
// Attempt n (1-based) waits BaseInterval * 2^(n-1) before retrying, capped at
// MaxInterval. Which errors are worth retrying is decided by the predicate
// passed to retry, not by the policy.
type RetryPolicy struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultRetryPolicy returns the standard policy: three attempts with
// exponential backoff starting at one second, capped at thirty seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		BaseInterval: 1 * time.Second,
		MaxInterval:  30 * time.Second,
	}
}

// backoff returns the wait before retrying after the given failed attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseInterval << (attempt - 1)
	if d <= 0 || d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// rateLimitMarkers are substrings that identify provider rate-limit errors.
// Providers surface these inconsistently (HTTP 429, gRPC RESOURCE_EXHAUSTED,
// quota messages), so matching is on the error text.
var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"quota",
	"resource_exhausted",
}

// isRateLimited reports whether err looks like a provider rate-limit error.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retry runs op up to policy.MaxAttempts times, retrying only errors the
// predicate accepts. Errors the predicate rejects are returned unwrapped on
// the attempt that produced them. onRetry, if non-nil, fires before each
// wait; sleep is injectable so tests can observe delays without waiting.
func retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	retryable func(error) bool,
	sleep func(context.Context, time.Duration) error,
	onRetry func(attempt int, delay time.Duration, err error),
	op func() (T, error),
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry wait interrupted: %w", err)
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
