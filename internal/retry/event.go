package retry

import "time"

// EventType identifies the kind of event occurring during retry execution.
type EventType string

const (
	EventAttemptStart  EventType = "attempt_start"
	EventAttemptFailed EventType = "attempt_failed"
	EventRetrying      EventType = "retrying"
	EventSuccess       EventType = "success"
	EventExhausted     EventType = "exhausted"
)

// Event describes one step of a retried request.
type Event struct {
	Type EventType

	// Operation names the request being retried ("list_sessions", ...).
	Operation string

	// Attempt is the current attempt number (1-indexed).
	Attempt     int
	MaxAttempts int

	Error error

	// Delay is the wait before the next attempt, set on EventRetrying.
	Delay time.Duration

	Retryable bool
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
