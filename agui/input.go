package agui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// maxInputBytes bounds request bodies read by the bridge.
const maxInputBytes = 1 << 20

// RunAgentInput represents the AG-UI protocol request for running an agent.
// This mirrors the AG-UI protocol specification and is transport-agnostic.
type RunAgentInput struct {
	ThreadID       string           `json:"thread_id"`
	RunID          string           `json:"run_id"`
	Messages       []events.Message `json:"messages"`
	Tools          []any            `json:"tools,omitempty"`
	Context        []any            `json:"context,omitempty"`
	State          any              `json:"state,omitempty"`
	ForwardedProps any              `json:"forwarded_props,omitempty"`
}

// PreparedInput is a validated RunAgentInput.
// ThreadID is the ADK session id; empty means a new conversation.
type PreparedInput struct {
	ThreadID string
	RunID    string
	Text     string
}

var (
	// ErrNoMessages is returned when the input contains no messages.
	ErrNoMessages = errors.New("no messages provided")

	// ErrNoUserText is returned when no message is a user message with text.
	ErrNoUserText = errors.New("no user message with text")
)

// Prepare validates the input and extracts the text to send.
// Only the last user message is sent; the backend holds the rest of the
// history already.
func (r *RunAgentInput) Prepare() (*PreparedInput, error) {
	if len(r.Messages) == 0 {
		return nil, ErrNoMessages
	}

	text, ok := LastUserText(r.Messages)
	if !ok {
		return nil, ErrNoUserText
	}

	return &PreparedInput{
		ThreadID: r.ThreadID,
		RunID:    r.RunID,
		Text:     text,
	}, nil
}

// MessageInput is the body of a send-message command.
type MessageInput struct {
	Text string `json:"text"`
}

// ResumeInput is the body of a resume command.
type ResumeInput struct {
	InvocationID string `json:"invocation_id"`
}

// Validate reports whether the message has text.
func (m *MessageInput) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// Validate reports whether the invocation id is set.
func (r *ResumeInput) Validate() error {
	if r.InvocationID == "" {
		return errors.New("invocation_id is required")
	}
	return nil
}

// DecodeInput reads a JSON body of at most 1 MiB into T.
func DecodeInput[T any](r io.Reader) (T, error) {
	var result T
	dec := json.NewDecoder(io.LimitReader(r, maxInputBytes))
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("invalid request body: %w", err)
	}
	return result, nil
}
