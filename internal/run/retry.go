package run

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rendis/routinekit/pkg/schema"
)

// IsRetryableError classifies a hydration fetch failure. Cancellation and
// GraphErrors with non-retryable codes are final; everything else, timeouts
// included, is retried up to the policy's attempt limit.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var gErr *schema.GraphError
	if errors.As(err, &gErr) {
		return gErr.IsRetryable()
	}
	return true
}

// ComputeBackoff returns the delay before retry number attempt (0-based).
// Supports none, constant, linear and exponential backoff with an optional cap.
// Growth stops at the cap, or at the largest Duration when there is none.
func ComputeBackoff(policy *schema.RetryPolicy, attempt int) time.Duration {
	if policy == nil || policy.Delay == "" {
		return 0
	}

	base, err := time.ParseDuration(policy.Delay)
	if err != nil {
		return 0
	}

	attempt = max(attempt, 0)
	ceiling := time.Duration(math.MaxInt64)
	if policy.MaxDelay != "" {
		if maxDelay, parseErr := time.ParseDuration(policy.MaxDelay); parseErr == nil {
			ceiling = maxDelay
		}
	}

	delay := base
	switch policy.Backoff {
	case "exponential":
		for i := 0; i < attempt && delay > 0 && delay < ceiling; i++ {
			if delay > ceiling/2 {
				delay = ceiling
				break
			}
			delay *= 2
		}
	case "linear":
		if n := time.Duration(attempt + 1); delay > ceiling/n {
			delay = ceiling
		} else {
			delay *= n
		}
	}
	return min(delay, ceiling)
}

// WaitForBackoff sleeps for delay or until ctx is done.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
