package retry

import (
	"context"
	"time"

	"github.com/spetersoncode/adkchat"
)

// effectiveDelay returns the delay to use, honoring the server's Retry-After if larger.
func effectiveDelay(configured time.Duration, err error) time.Duration {
	if server := adkchat.RetryAfterOf(err); server > configured {
		return server
	}
	return configured
}

// Do executes fn with retry logic. It respects context cancellation during
// backoff waits and returns the last error if all attempts fail.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	return DoWithEvents(ctx, cfg, "", nil, fn)
}

// DoWithEvents is like Do but reports each step on events, tagged with op.
// Events are sent non-blocking; pass nil to disable them.
func DoWithEvents[T any](ctx context.Context, cfg Config, op string, events chan<- Event, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := max(cfg.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		emit(events, Event{Type: EventAttemptStart, Operation: op, Attempt: attempt + 1, MaxAttempts: attempts})

		result, err := fn()
		if err == nil {
			emit(events, Event{Type: EventSuccess, Operation: op, Attempt: attempt + 1, MaxAttempts: attempts})
			return result, nil
		}

		lastErr = err
		retryable := IsTransient(err)
		emit(events, Event{
			Type:        EventAttemptFailed,
			Operation:   op,
			Attempt:     attempt + 1,
			MaxAttempts: attempts,
			Error:       err,
			Retryable:   retryable,
		})

		if !retryable {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < attempts-1 {
			delay := effectiveDelay(cfg.Delay(attempt), err)
			emit(events, Event{Type: EventRetrying, Operation: op, Attempt: attempt + 1, MaxAttempts: attempts, Delay: delay})

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	emit(events, Event{Type: EventExhausted, Operation: op, Attempt: attempts, MaxAttempts: attempts, Error: lastErr})
	return zero, lastErr
}
