package adkchat

import "slices"

// State is the immutable snapshot of one conversation.
// Every change produces a new State; callers never mutate a published one.
type State struct {
	Messages      []Message  `json:"messages" yaml:"messages"`
	IsStreaming   bool       `json:"isStreaming" yaml:"isStreaming"`
	Error         string     `json:"error,omitempty" yaml:"error,omitempty"`
	DraftResponse string     `json:"draftResponse" yaml:"draftResponse"`
	Sources       []Citation `json:"sources" yaml:"sources"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	if s.Messages != nil {
		c.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			c.Messages[i] = m.Clone()
		}
	}
	c.Sources = slices.Clone(s.Sources)
	return c
}

// Last returns the last message and true, or a zero Message and false when empty.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// HasUserText reports whether a user message with exactly text exists.
func (s State) HasUserText(text string) bool {
	return slices.ContainsFunc(s.Messages, func(m Message) bool {
		return m.Role == RoleUser && m.Text == text
	})
}

// HasSource reports whether a citation for url is already collected.
func (s State) HasSource(url string) bool {
	return slices.ContainsFunc(s.Sources, func(c Citation) bool {
		return c.URL == url
	})
}

// StreamingCount returns how many messages are still open.
func (s State) StreamingCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsStreaming {
			n++
		}
	}
	return n
}
