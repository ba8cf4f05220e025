package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/event"
)

func ptr(b bool) *bool { return &b }

var (
	partial = ptr(true)
	final   = ptr(false)
)

func agentText(author, text string, p *bool) event.Event {
	return event.Event{
		Author:  author,
		Partial: p,
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}
}

func userText(text string) event.Event {
	return event.Event{
		Author:  "user",
		Content: genai.NewContentFromText(text, genai.RoleUser),
	}
}

func toolCall(author, name string, args map[string]any) event.Event {
	return event.Event{
		Author: author,
		Content: &genai.Content{
			Role:  string(genai.RoleModel),
			Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: name, Args: args}}},
		},
	}
}

func grounding(urls ...string) event.Event {
	md := &genai.GroundingMetadata{}
	for _, u := range urls {
		md.GroundingChunks = append(md.GroundingChunks, &genai.GroundingChunk{
			Web: &genai.GroundingChunkWeb{URI: u, Title: "title " + u},
		})
	}
	return event.Event{Author: "investigator", GroundingMetadata: md}
}

// strip zeroes the fields that legitimately differ between two folds.
func strip(s adkchat.State) adkchat.State {
	s = s.Clone()
	for i := range s.Messages {
		s.Messages[i].ID = ""
		s.Messages[i].Timestamp = time.Time{}
	}
	return s
}

func applyAll(r *Reducer, s adkchat.State, events ...event.Event) adkchat.State {
	for _, ev := range events {
		s = r.Apply(s, ev)
	}
	return s
}

func assertSingleStreaming(t *testing.T, s adkchat.State) {
	t.Helper()
	assert.LessOrEqual(t, s.StreamingCount(), 1)
	for i, m := range s.Messages {
		if m.IsStreaming {
			assert.Equal(t, len(s.Messages)-1, i, "open message must be last")
		}
	}
}

func TestApplyDraft(t *testing.T) {
	r := NewReducer(nil)

	s := applyAll(r, adkchat.State{},
		agentText("writer", "Hello", partial),
		agentText("writer", " world", partial),
	)

	assert.Equal(t, "Hello world", s.DraftResponse)
	assert.Empty(t, s.Messages)

	t.Run("input state is untouched", func(t *testing.T) {
		before := adkchat.State{DraftResponse: "x"}
		after := r.Apply(before, agentText("writer", "y", partial))
		assert.Equal(t, "x", before.DraftResponse)
		assert.Equal(t, "xy", after.DraftResponse)
	})

	t.Run("non-partial writer text goes to the transcript", func(t *testing.T) {
		s := r.Apply(adkchat.State{}, agentText("writer", "Final answer", nil))
		require.Len(t, s.Messages, 1)
		assert.Equal(t, "Final answer", s.Messages[0].Text)
		assert.Empty(t, s.DraftResponse)
	})

	t.Run("partial text from other authors is transcript text", func(t *testing.T) {
		s := r.Apply(adkchat.State{}, agentText("investigator", "Looking", partial))
		require.Len(t, s.Messages, 1)
		assert.True(t, s.Messages[0].IsStreaming)
		assert.Empty(t, s.DraftResponse)
	})
}

func TestApplyUserReplay(t *testing.T) {
	r := NewReducer(nil)

	s := applyAll(r, adkchat.State{},
		userText("Is this claim true?"),
		agentText("writer", "Probably not.", final),
		userText("Is this claim true?"),
	)

	require.Len(t, s.Messages, 2)
	assert.Equal(t, adkchat.RoleUser, s.Messages[0].Role)
	assert.Empty(t, s.Messages[0].Author)
	assert.False(t, s.Messages[0].IsStreaming)

	t.Run("user text closes an open agent message", func(t *testing.T) {
		s := applyAll(r, adkchat.State{},
			agentText("investigator", "Searching", partial),
			userText("and another thing"),
		)
		require.Len(t, s.Messages, 2)
		assert.False(t, s.Messages[0].IsStreaming)
		assertSingleStreaming(t, s)
	})
}

func TestApplyToolCalls(t *testing.T) {
	r := NewReducer(nil)

	t.Run("attach between text fragments", func(t *testing.T) {
		s := applyAll(r, adkchat.State{},
			agentText("investigator", "Checking...", nil),
			toolCall("investigator", "search", map[string]any{"q": "claim"}),
			agentText("investigator", " done.", nil),
		)

		require.Len(t, s.Messages, 1)
		m := s.Messages[0]
		assert.Equal(t, "Checking... done.", m.Text)
		require.Len(t, m.ToolCalls, 1)
		assert.Equal(t, "search", m.ToolCalls[0].Name)
		assert.False(t, m.IsStreaming)
	})

	t.Run("opens a message when nothing is open", func(t *testing.T) {
		s := r.Apply(adkchat.State{}, toolCall("", "search", nil))
		require.Len(t, s.Messages, 1)
		assert.Equal(t, adkchat.DefaultAuthor, s.Messages[0].Author)
		assert.Empty(t, s.Messages[0].Text)
		assert.True(t, s.Messages[0].IsStreaming)
	})

	t.Run("attaches regardless of author", func(t *testing.T) {
		s := applyAll(r, adkchat.State{},
			agentText("investigator", "Let me look", partial),
			toolCall("verifier", "fetch", nil),
		)
		require.Len(t, s.Messages, 1)
		assert.Equal(t, "investigator", s.Messages[0].Author)
		assert.Len(t, s.Messages[0].ToolCalls, 1)
	})

	t.Run("attached args are copied", func(t *testing.T) {
		args := map[string]any{"q": "claim"}
		s := r.Apply(adkchat.State{}, toolCall("investigator", "search", args))
		args["q"] = "mutated"
		assert.Equal(t, "claim", s.Messages[0].ToolCalls[0].Args["q"])
	})
}

func TestApplyAgentText(t *testing.T) {
	r := NewReducer(nil)

	tests := []struct {
		name      string
		events    []event.Event
		texts     []string
		streaming []bool
	}{
		{
			name:      "partial fragments merge and stay open",
			events:    []event.Event{agentText("investigator", "a", partial), agentText("investigator", "b", partial)},
			texts:     []string{"ab"},
			streaming: []bool{true},
		},
		{
			name:      "omitted partial closes a merged message",
			events:    []event.Event{agentText("investigator", "a", partial), agentText("investigator", "b", nil)},
			texts:     []string{"ab"},
			streaming: []bool{false},
		},
		{
			name:      "explicit false closes a merged message",
			events:    []event.Event{agentText("investigator", "a", partial), agentText("investigator", "b", final)},
			texts:     []string{"ab"},
			streaming: []bool{false},
		},
		{
			name:      "new message with omitted partial stays open",
			events:    []event.Event{agentText("investigator", "a", nil)},
			texts:     []string{"a"},
			streaming: []bool{true},
		},
		{
			name:      "new message with explicit false is closed",
			events:    []event.Event{agentText("investigator", "a", final)},
			texts:     []string{"a"},
			streaming: []bool{false},
		},
		{
			name:      "author change opens a new message",
			events:    []event.Event{agentText("investigator", "a", partial), agentText("verifier", "b", partial)},
			texts:     []string{"a", "b"},
			streaming: []bool{false, true},
		},
		{
			name:      "closed message is never reopened",
			events:    []event.Event{agentText("investigator", "a", final), agentText("investigator", "b", partial)},
			texts:     []string{"a", "b"},
			streaming: []bool{false, true},
		},
		{
			name:      "empty author defaults to writer",
			events:    []event.Event{agentText("", "a", partial), agentText("writer", "b", nil)},
			texts:     []string{"ab"},
			streaming: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := applyAll(r, adkchat.State{}, tt.events...)
			require.Len(t, s.Messages, len(tt.texts))
			for i, m := range s.Messages {
				assert.Equal(t, tt.texts[i], m.Text)
				assert.Equal(t, tt.streaming[i], m.IsStreaming)
				assert.Equal(t, adkchat.RoleAgent, m.Role)
			}
			assertSingleStreaming(t, s)
		})
	}

	t.Run("agent role alias", func(t *testing.T) {
		ev := event.Event{Author: "verifier", Content: genai.NewContentFromText("ok", "agent")}
		s := r.Apply(adkchat.State{}, ev)
		require.Len(t, s.Messages, 1)
		assert.Equal(t, "ok", s.Messages[0].Text)
	})

	t.Run("unknown role text is ignored", func(t *testing.T) {
		ev := event.Event{Author: "system", Content: genai.NewContentFromText("noise", "system")}
		s := r.Apply(adkchat.State{}, ev)
		assert.Empty(t, s.Messages)
	})
}

func TestApplyPlaceholder(t *testing.T) {
	r := NewReducer(nil)

	t.Run("empty placeholder adopts the first author", func(t *testing.T) {
		s := r.Append(adkchat.State{}, r.NewPlaceholder())
		s = applyAll(r, s,
			agentText("investigator", "Searching", partial),
			agentText("investigator", " the web", nil),
		)

		require.Len(t, s.Messages, 1)
		assert.Equal(t, "investigator", s.Messages[0].Author)
		assert.Equal(t, "Searching the web", s.Messages[0].Text)
	})

	t.Run("drop only when empty", func(t *testing.T) {
		ph := r.NewPlaceholder()
		s := r.Append(adkchat.State{}, ph)
		assert.Empty(t, DropEmptyPlaceholder(s, ph.ID).Messages)

		filled := r.Apply(s, toolCall("investigator", "search", nil))
		assert.Len(t, DropEmptyPlaceholder(filled, ph.ID).Messages, 1)

		assert.Len(t, DropEmptyPlaceholder(s, "missing").Messages, 1)
	})

	t.Run("append closes the open message", func(t *testing.T) {
		s := r.Apply(adkchat.State{}, agentText("investigator", "a", partial))
		s = r.Append(s, r.NewUserMessage("next"))
		require.Len(t, s.Messages, 2)
		assert.Zero(t, s.StreamingCount())
	})
}

func TestApplyCitations(t *testing.T) {
	r := NewReducer(nil)

	s := applyAll(r, adkchat.State{},
		grounding("https://a.example/1", "https://b.example/2"),
		grounding("https://b.example/2", "https://c.example/3", "https://c.example/3"),
		grounding("https://a.example/1"),
	)

	var urls []string
	for _, c := range s.Sources {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"}, urls)
	assert.Equal(t, "a.example", s.Sources[0].Domain)
	assert.False(t, s.Sources[0].Adopted)
	assert.Empty(t, s.Sources[0].Snippet)

	t.Run("collected alongside draft text", func(t *testing.T) {
		ev := agentText("writer", "draft", partial)
		ev.GroundingMetadata = grounding("https://d.example/4").GroundingMetadata
		s := r.Apply(adkchat.State{}, ev)
		assert.Equal(t, "draft", s.DraftResponse)
		require.Len(t, s.Sources, 1)
	})
}

func TestFold(t *testing.T) {
	r := NewReducer(nil)

	history := []event.Event{
		userText("Is the moon made of cheese?"),
		agentText("investigator", "Searching", partial),
		toolCall("investigator", "search", map[string]any{"q": "moon cheese"}),
		grounding("https://nasa.example/moon", "https://nasa.example/moon"),
		agentText("investigator", " for sources.", partial),
		agentText("writer", "No", partial),
		agentText("writer", "No, it is rock.", nil),
		userText("Thanks"),
		agentText("writer", "You're welcome", partial),
	}

	t.Run("nothing is left open", func(t *testing.T) {
		s := r.Fold(history)
		assert.False(t, s.IsStreaming)
		assert.Zero(t, s.StreamingCount())
		require.Len(t, s.Messages, 4)
		assert.Equal(t, "Searching for sources.", s.Messages[1].Text)
		assert.Equal(t, "No, it is rock.", s.Messages[2].Text)
		assert.Equal(t, "No", s.DraftResponse[:2])
	})

	t.Run("folding twice is deterministic", func(t *testing.T) {
		assert.Equal(t, strip(r.Fold(history)), strip(r.Fold(history)))
	})

	t.Run("replaying onto loaded state adds no users or sources", func(t *testing.T) {
		s := r.Fold(history)
		again := applyAll(r, s, history...)

		users := 0
		for _, m := range again.Messages {
			if m.Role == adkchat.RoleUser {
				users++
			}
		}
		assert.Equal(t, 2, users)
		assert.Equal(t, s.Sources, again.Sources)
	})

	t.Run("single streaming invariant holds after every event", func(t *testing.T) {
		var s adkchat.State
		for _, ev := range history {
			s = r.Apply(s, ev)
			assertSingleStreaming(t, s)
		}
	})
}

func TestMessageIDs(t *testing.T) {
	ids := adkchat.NewIDGenerator()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewReducer(ids, WithClock(func() time.Time { return fixed }))

	s := applyAll(r, adkchat.State{},
		userText("one"),
		agentText("writer", "two", final),
	)

	require.Len(t, s.Messages, 2)
	assert.NotEqual(t, s.Messages[0].ID, s.Messages[1].ID)
	assert.Equal(t, fixed, s.Messages[0].Timestamp)

	stamped := userText("three")
	stamped.Timestamp = fixed.Add(time.Hour)
	s = r.Apply(s, stamped)
	assert.Equal(t, fixed.Add(time.Hour), s.Messages[2].Timestamp)
}
