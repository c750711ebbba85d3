package recovery

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// OnRetryFunc is called before retry number attempt (1-indexed) sleeps for delay.
type OnRetryFunc func(attempt int, delay time.Duration, err error)

// Do runs op until it succeeds, fails non-transiently, exhausts MaxRetries or ctx is done.
// It returns the number of times op ran and the error of the last run.
// When ctx is done before the first run, op never runs and ctx's error is returned.
// ctx only bounds the waits between runs; op decides its own deadline.
func (s *ExponentialBackoff) Do(ctx context.Context, op func(attempt int) error, onRetry OnRetryFunc) (int, error) {
	var (
		attempts int
		lastErr  error
	)
	maxAttempts := uint(s.MaxRetries) + 1

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err := retry.Do(
		func() error {
			attempts++
			lastErr = op(attempts)
			return lastErr
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return s.GetDelay(int(n))
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && s.ShouldRetry(err, attempts-1)
		}),
		retry.OnRetry(func(n uint, err error) {
			// retry-go reports the final failure too; only announce real retries.
			if onRetry == nil || n+1 >= maxAttempts {
				return
			}
			onRetry(int(n)+1, s.GetDelay(int(n)), err)
		}),
	)
	if attempts == 0 {
		return 0, err
	}
	return attempts, lastErr
}
