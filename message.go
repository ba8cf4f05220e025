package adkchat

import (
	"fmt"
	"maps"
	"sync/atomic"
	"time"
)

// Role identifies who produced a transcript message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// DefaultAuthor is the sub-agent name assumed when an agent event carries no author.
// It is also the author of the drafting channel.
const DefaultAuthor = "writer"

// ToolCall is a tool invocation attached to an agent message.
type ToolCall struct {
	Name string         `json:"name" yaml:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Clone returns a copy of the tool call with its own args map.
func (tc ToolCall) Clone() ToolCall {
	return ToolCall{Name: tc.Name, Args: maps.Clone(tc.Args)}
}

// Message is a single entry of the conversation transcript.
type Message struct {
	// ID is generated client-side and is monotonic per process.
	ID   string `json:"id" yaml:"id"`
	Role Role   `json:"role" yaml:"role"`
	// Author is the logical sub-agent name ("investigator", "verifier", "writer").
	// Empty for user messages.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`
	Text   string `json:"text" yaml:"text"`
	// ToolCalls grows only while the message is open.
	ToolCalls []ToolCall `json:"toolCalls,omitempty" yaml:"toolCalls,omitempty"`
	// IsStreaming is true until the message is finalized.
	IsStreaming bool      `json:"isStreaming" yaml:"isStreaming"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = tc.Clone()
		}
	}
	return c
}

// IsOpenAgent reports whether the message is an agent message still accepting content.
func (m Message) IsOpenAgent() bool {
	return m.Role == RoleAgent && m.IsStreaming
}

// IsEmpty reports whether the message carries neither text nor tool calls.
func (m Message) IsEmpty() bool {
	return m.Text == "" && len(m.ToolCalls) == 0
}

// IDGenerator hands out process-unique message identifiers of the form
// "msg-<n>-<unix millis>". The counter is monotonic for the generator's lifetime.
type IDGenerator struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewIDGenerator creates a generator starting at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next message identifier.
func (g *IDGenerator) Next() string {
	n := g.counter.Add(1)
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	return fmt.Sprintf("msg-%d-%d", n, now().UnixMilli())
}
