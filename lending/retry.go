package lending

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// retryConfig bounds the optimistic retries of one operation.
type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
}

// retryOnConflict runs fn until it succeeds, fails with something other than
// ErrVersionConflict, or runs out of attempts. Delays double from baseDelay with jitter.
func retryOnConflict(ctx context.Context, cfg retryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * defaultJitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return storageError("lending cancelled", ctx.Err())
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, ErrVersionConflict) {
			return lastErr
		}
	}
	return &Error{Kind: KindConflict, Msg: "account changed concurrently, try again", Err: lastErr}
}
