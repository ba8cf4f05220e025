package client

import "github.com/spetersoncode/adkchat/internal/retry"

// RetryConfig holds retry configuration parameters.
type RetryConfig = retry.Config

// RetryEvent represents an observable occurrence during retry execution.
type RetryEvent = retry.Event

// DefaultRetryConfig returns the default retry configuration:
// 3 attempts, 500ms initial delay doubling up to 10s, 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return retry.DefaultConfig()
}

// DisabledRetryConfig returns a configuration that disables retries.
func DisabledRetryConfig() RetryConfig {
	return retry.Disabled()
}

// forwardRetryEvents relays retry events to the client's event channel
// until retryEvents is closed.
func (c *Client) forwardRetryEvents(retryEvents <-chan retry.Event, op, sessionID string) {
	for re := range retryEvents {
		emit(c.events, Event{
			Type:       EventRetry,
			Operation:  op,
			SessionID:  sessionID,
			Error:      re.Error,
			RetryEvent: &re,
		})
	}
}
