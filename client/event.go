package client

import (
	"time"

	"github.com/spetersoncode/adkchat/internal/retry"
)

// EventType identifies the kind of event occurring during client operations.
type EventType string

const (
	// EventRequestStart fires before a backend request begins.
	EventRequestStart EventType = "request_start"

	// EventRequestComplete fires after a backend request succeeds.
	EventRequestComplete EventType = "request_complete"

	// EventRequestError fires when a backend request fails.
	EventRequestError EventType = "request_error"

	// EventRetry fires for each step of a retried request.
	EventRetry EventType = "retry"
)

// Event represents an observable occurrence during client operations.
type Event struct {
	Type EventType

	// Operation identifies the backend operation
	// ("create_session", "list_sessions", "get_session", "run").
	Operation string

	// SessionID is set for operations on a single session.
	SessionID string

	// Duration is the elapsed time for finished requests.
	Duration time.Duration

	Error error

	// RetryEvent contains the underlying retry event for EventRetry.
	RetryEvent *retry.Event

	Timestamp time.Time
}

// emit sends an event with timestamp to the channel without blocking.
func emit(ch chan<- Event, event Event) {
	if ch == nil {
		return
	}
	event.Timestamp = time.Now()
	select {
	case ch <- event:
	default:
		// Channel full - don't block
	}
}
