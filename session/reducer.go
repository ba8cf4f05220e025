package session

import (
	"slices"
	"time"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/event"
)

// Reducer applies events to conversation state.
// It is safe for concurrent use; the only shared state is the id generator.
type Reducer struct {
	ids         *adkchat.IDGenerator
	now         func() time.Time
	draftAuthor string
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithClock sets the time source for message timestamps of events that carry none.
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) {
		r.now = now
	}
}

// WithDraftAuthor sets the author whose partial text feeds the draft buffer.
// Defaults to adkchat.DefaultAuthor.
func WithDraftAuthor(author string) Option {
	return func(r *Reducer) {
		r.draftAuthor = author
	}
}

// NewReducer creates a reducer that names new messages with ids.
// A nil ids gets a private generator.
func NewReducer(ids *adkchat.IDGenerator, opts ...Option) *Reducer {
	if ids == nil {
		ids = adkchat.NewIDGenerator()
	}
	r := &Reducer{
		ids:         ids,
		now:         time.Now,
		draftAuthor: adkchat.DefaultAuthor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply returns the state that results from applying ev to s.
// s is not modified.
func (r *Reducer) Apply(s adkchat.State, ev event.Event) adkchat.State {
	next := s.Clone()
	text := ev.Text()

	switch {
	case ev.Author == r.draftAuthor && text != "" && ev.IsPartial():
		next.DraftResponse += text

	case ev.Role() == event.RoleUser && text != "":
		if !next.HasUserText(text) {
			next.Messages = r.open(next.Messages, adkchat.Message{
				Role:      adkchat.RoleUser,
				Text:      text,
				Timestamp: r.timestamp(ev),
			})
		}

	default:
		if calls := ev.ToolCalls(); len(calls) > 0 {
			next.Messages = r.attachToolCalls(next.Messages, ev, calls)
		}
		if text != "" && ev.IsAgentRole() {
			next.Messages = r.appendText(next.Messages, ev, text)
		}
	}

	for _, c := range ev.Citations() {
		if !next.HasSource(c.URL) {
			next.Sources = append(next.Sources, c)
		}
	}
	return next
}

// Fold builds the state of a stored conversation by applying events in
// order from an empty state. The result has nothing open.
func (r *Reducer) Fold(events []event.Event) adkchat.State {
	var s adkchat.State
	for _, ev := range events {
		s = r.Apply(s, ev)
	}
	return Finalize(s)
}

// NewPlaceholder returns an open, empty agent message authored by the writer.
func (r *Reducer) NewPlaceholder() adkchat.Message {
	return adkchat.Message{
		ID:          r.ids.Next(),
		Role:        adkchat.RoleAgent,
		Author:      r.draftAuthor,
		IsStreaming: true,
		Timestamp:   r.now(),
	}
}

// NewUserMessage returns a finalized user message with text.
func (r *Reducer) NewUserMessage(text string) adkchat.Message {
	return adkchat.Message{
		ID:        r.ids.Next(),
		Role:      adkchat.RoleUser,
		Text:      text,
		Timestamp: r.now(),
	}
}

// Append returns s with m appended, closing any open message first.
func (r *Reducer) Append(s adkchat.State, m adkchat.Message) adkchat.State {
	next := s.Clone()
	if m.ID == "" {
		m.ID = r.ids.Next()
	}
	next.Messages = closeLast(next.Messages)
	next.Messages = append(next.Messages, m)
	return next
}

// Finalize closes every open message and clears the streaming flag.
func Finalize(s adkchat.State) adkchat.State {
	next := s.Clone()
	next.IsStreaming = false
	for i := range next.Messages {
		next.Messages[i].IsStreaming = false
	}
	return next
}

// DropEmptyPlaceholder removes the agent message with id if it never
// received text or tool calls.
func DropEmptyPlaceholder(s adkchat.State, id string) adkchat.State {
	i := slices.IndexFunc(s.Messages, func(m adkchat.Message) bool {
		return m.ID == id
	})
	if i < 0 || s.Messages[i].Role != adkchat.RoleAgent || !s.Messages[i].IsEmpty() {
		return s
	}
	next := s.Clone()
	next.Messages = slices.Delete(next.Messages, i, i+1)
	return next
}

func (r *Reducer) attachToolCalls(msgs []adkchat.Message, ev event.Event, calls []adkchat.ToolCall) []adkchat.Message {
	cloned := make([]adkchat.ToolCall, len(calls))
	for i, c := range calls {
		cloned[i] = c.Clone()
	}

	if last := len(msgs) - 1; last >= 0 && msgs[last].IsOpenAgent() {
		m := &msgs[last]
		adopt(m, ev)
		m.ToolCalls = append(m.ToolCalls, cloned...)
		return msgs
	}

	return r.open(msgs, adkchat.Message{
		Role:        adkchat.RoleAgent,
		Author:      authorOf(ev),
		ToolCalls:   cloned,
		IsStreaming: true,
		Timestamp:   r.timestamp(ev),
	})
}

func (r *Reducer) appendText(msgs []adkchat.Message, ev event.Event, text string) []adkchat.Message {
	if last := len(msgs) - 1; last >= 0 && msgs[last].IsOpenAgent() {
		m := &msgs[last]
		adopt(m, ev)
		if authorOr(m.Author) == authorOf(ev) {
			m.Text += text
			m.IsStreaming = ev.IsPartial()
			return msgs
		}
	}

	return r.open(msgs, adkchat.Message{
		Role:        adkchat.RoleAgent,
		Author:      authorOf(ev),
		Text:        text,
		IsStreaming: !ev.IsExplicitlyFinal(),
		Timestamp:   r.timestamp(ev),
	})
}

// open closes the current last message and appends m with a fresh id.
func (r *Reducer) open(msgs []adkchat.Message, m adkchat.Message) []adkchat.Message {
	m.ID = r.ids.Next()
	return append(closeLast(msgs), m)
}

func (r *Reducer) timestamp(ev event.Event) time.Time {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp
	}
	return r.now()
}

// adopt gives an open message that has no content yet the author of the
// first event that fills it.
func adopt(m *adkchat.Message, ev event.Event) {
	if m.IsEmpty() {
		m.Author = authorOf(ev)
	}
}

func closeLast(msgs []adkchat.Message) []adkchat.Message {
	if n := len(msgs); n > 0 && msgs[n-1].IsStreaming {
		msgs[n-1].IsStreaming = false
	}
	return msgs
}

func authorOf(ev event.Event) string {
	return authorOr(ev.Author)
}

func authorOr(author string) string {
	if author == "" {
		return adkchat.DefaultAuthor
	}
	return author
}
