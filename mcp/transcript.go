package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spetersoncode/adkchat"
)

// Transcript renders s as plain text, one block per message, followed by
// the draft and the sources when present.
func Transcript(s adkchat.State) string {
	var b strings.Builder
	for i, m := range s.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		writeMessage(&b, m)
	}

	if s.DraftResponse != "" {
		fmt.Fprintf(&b, "\nDraft:\n%s\n", s.DraftResponse)
	}

	if len(s.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, c := range s.Sources {
			fmt.Fprintf(&b, "%d. %s (%s) %s\n", i+1, c.Title, c.Domain, c.URL)
		}
	}

	if s.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", s.Error)
	}
	return b.String()
}

func writeMessage(b *strings.Builder, m adkchat.Message) {
	label := string(m.Role)
	if m.Author != "" {
		label += ":" + m.Author
	}
	if m.IsStreaming {
		label += " (streaming)"
	}
	fmt.Fprintf(b, "[%s]\n", label)

	if m.Text != "" {
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	for _, tc := range m.ToolCalls {
		fmt.Fprintf(b, "-> %s %s\n", tc.Name, toolArgs(tc.Args))
	}
}

func toolArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Reply returns the text of the last agent message at or after index from.
// It is empty when the agent produced no text.
func Reply(msgs []adkchat.Message, from int) string {
	for i := len(msgs) - 1; i >= from && i >= 0; i-- {
		if msgs[i].Role == adkchat.RoleAgent && msgs[i].Text != "" {
			return msgs[i].Text
		}
	}
	return ""
}
