package stream

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// EventRunStarted fires when a run is installed for a conversation.
	EventRunStarted EventType = "run_started"

	// EventRunStreaming fires when the first body byte arrives.
	EventRunStreaming EventType = "run_streaming"

	// EventRunFinished fires when the backend closed the stream normally.
	EventRunFinished EventType = "run_finished"

	// EventRunCancelled fires when a run was stopped or superseded.
	EventRunCancelled EventType = "run_cancelled"

	// EventRunFailed fires when the transport failed.
	EventRunFailed EventType = "run_failed"

	// EventDecodeError fires for each frame that could not be decoded.
	EventDecodeError EventType = "decode_error"

	// EventAgentError fires for backend events carrying an error code.
	EventAgentError EventType = "agent_error"
)

// Event represents an observable occurrence during a run.
type Event struct {
	Type           EventType
	ConversationID string
	RunID          string
	Phase          Phase

	// Error is the transport or decode error, if any.
	Error error

	// ErrorCode and ErrorMessage are copied from the backend event for EventAgentError.
	ErrorCode    string
	ErrorMessage string

	Timestamp time.Time
}

// emit sends an event with timestamp to the channel without blocking.
func emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
		// Channel full - don't block
	}
}
