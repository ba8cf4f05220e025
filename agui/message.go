package agui

import (
	"encoding/json"
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/adkchat"
)

// Role constants matching AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// FromMessages converts transcript messages to AG-UI messages.
func FromMessages(msgs []adkchat.Message) []events.Message {
	result := make([]events.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, FromMessage(msg))
	}
	return result
}

// FromMessage converts a single transcript message to an AG-UI message.
// Tool calls get ids derived from the message id and their position.
func FromMessage(msg adkchat.Message) events.Message {
	m := events.Message{
		ID:   msg.ID,
		Role: fromRole(msg.Role),
	}

	if msg.Text != "" {
		text := msg.Text
		m.Content = &text
	}

	if len(msg.ToolCalls) > 0 {
		m.ToolCalls = make([]events.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			m.ToolCalls[i] = events.ToolCall{
				ID:   fmt.Sprintf("%s-call-%d", msg.ID, i),
				Type: "function",
				Function: events.Function{
					Name:      tc.Name,
					Arguments: encodeArgs(tc.Args),
				},
			}
		}
	}

	return m
}

// LastUserText returns the content of the last user message with text.
func LastUserText(msgs []events.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser && msgs[i].Content != nil && *msgs[i].Content != "" {
			return *msgs[i].Content, true
		}
	}
	return "", false
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// fromRole converts a transcript role to an AG-UI role string.
func fromRole(role adkchat.Role) string {
	switch role {
	case adkchat.RoleUser:
		return RoleUser
	case adkchat.RoleAgent:
		return RoleAssistant
	default:
		return RoleUser
	}
}
