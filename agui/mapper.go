package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/adkchat"
)

// Snapshot is the shared state published in STATE_SNAPSHOT events.
type Snapshot struct {
	IsStreaming   bool               `json:"isStreaming"`
	Error         string             `json:"error,omitempty"`
	DraftResponse string             `json:"draftResponse"`
	Sources       []adkchat.Citation `json:"sources"`
}

// Mapper converts successive states of one conversation to AG-UI events.
//
// Every state yields a MESSAGES_SNAPSHOT and a STATE_SNAPSHOT. Changes of
// the streaming flag are bracketed with RUN_STARTED and RUN_FINISHED, or
// RUN_ERROR when the turn ended with an error.
//
// Create one Mapper per subscriber. The Mapper is not safe for concurrent use.
type Mapper struct {
	threadID  string
	runID     string
	streaming bool
	newRunID  func() string
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithRunIDs sets the generator of run ids. Defaults to events.GenerateRunID.
func WithRunIDs(fn func() string) MapperOption {
	return func(m *Mapper) {
		m.newRunID = fn
	}
}

// NewMapper creates a Mapper for the conversation threadID.
func NewMapper(threadID string, opts ...MapperOption) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	m := &Mapper{
		threadID: threadID,
		newRunID: events.GenerateRunID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the id of the current or last run, empty before the first.
func (m *Mapper) RunID() string {
	return m.runID
}

// RunStarted returns a RUN_STARTED event.
func (m *Mapper) RunStarted() events.Event {
	return events.NewRunStartedEvent(m.threadID, m.runID)
}

// RunFinished returns a RUN_FINISHED event.
func (m *Mapper) RunFinished() events.Event {
	return events.NewRunFinishedEvent(m.threadID, m.runID)
}

// RunError returns a RUN_ERROR event.
func (m *Mapper) RunError(msg string) events.Event {
	if msg == "" {
		msg = "unknown error"
	}
	return events.NewRunErrorEvent(msg)
}

// MessagesSnapshot returns a MESSAGES_SNAPSHOT of the transcript.
func (m *Mapper) MessagesSnapshot(s adkchat.State) events.Event {
	return events.NewMessagesSnapshotEvent(FromMessages(s.Messages))
}

// StateSnapshot returns a STATE_SNAPSHOT of everything but the transcript.
func (m *Mapper) StateSnapshot(s adkchat.State) events.Event {
	return events.NewStateSnapshotEvent(SnapshotOf(s))
}

// Begin starts a run before any streaming state was mapped and returns its
// RUN_STARTED event. The next non-streaming state finishes it.
func (m *Mapper) Begin() events.Event {
	m.runID = m.newRunID()
	m.streaming = true
	return m.RunStarted()
}

// Map returns the events announcing s.
func (m *Mapper) Map(s adkchat.State) []events.Event {
	var out []events.Event

	if s.IsStreaming && !m.streaming {
		out = append(out, m.Begin())
	}

	out = append(out, m.MessagesSnapshot(s), m.StateSnapshot(s))

	if !s.IsStreaming && m.streaming {
		if s.Error != "" {
			out = append(out, m.RunError(s.Error))
		} else {
			out = append(out, m.RunFinished())
		}
	}

	m.streaming = s.IsStreaming
	return out
}

// Streaming reports whether the last mapped state was streaming.
func (m *Mapper) Streaming() bool {
	return m.streaming
}

// SnapshotOf extracts the shared state of s.
func SnapshotOf(s adkchat.State) Snapshot {
	sources := s.Sources
	if sources == nil {
		sources = []adkchat.Citation{}
	}
	return Snapshot{
		IsStreaming:   s.IsStreaming,
		Error:         s.Error,
		DraftResponse: s.DraftResponse,
		Sources:       sources,
	}
}
