package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/cache"
)

// styles holds the lipgloss styles of terminal output.
type styles struct {
	User   lipgloss.Style
	Author lipgloss.Style
	Tool   lipgloss.Style
	Dim    lipgloss.Style
	Source lipgloss.Style
	Error  lipgloss.Style
	Header lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		User:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Author: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		Tool:   r.NewStyle().Foreground(lipgloss.Color("13")),
		Dim:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Source: r.NewStyle().Foreground(lipgloss.Color("14")).Underline(true),
		Error:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Header: r.NewStyle().Bold(true),
	}
}

// plainStyles renders text unchanged.
func plainStyles() styles {
	s := lipgloss.NewStyle()
	return styles{User: s, Author: s, Tool: s, Dim: s, Source: s, Error: s, Header: s}
}

// printer writes conversation states incrementally. Text already written
// for a message is not repeated when the message grows.
type printer struct {
	w        io.Writer
	st       styles
	showUser bool

	text    map[string]string
	calls   map[string]int
	headed  map[string]bool
	sources map[string]bool
	last    string
}

func newPrinter(w io.Writer, st styles, showUser bool) *printer {
	return &printer{
		w:        w,
		st:       st,
		showUser: showUser,
		text:     make(map[string]string),
		calls:    make(map[string]int),
		headed:   make(map[string]bool),
		sources:  make(map[string]bool),
	}
}

// render writes what s adds to the states rendered before.
func (p *printer) render(s adkchat.State) {
	for _, m := range s.Messages {
		if m.Role == adkchat.RoleUser && !p.showUser {
			continue
		}
		if m.IsEmpty() {
			continue
		}
		p.message(m)
	}
}

func (p *printer) message(m adkchat.Message) {
	if !p.headed[m.ID] {
		p.headed[m.ID] = true
		if p.last != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, p.label(m))
	}

	if m.Text != p.text[m.ID] {
		prev := p.text[m.ID]
		if rest, ok := strings.CutPrefix(m.Text, prev); ok {
			fmt.Fprint(p.w, rest)
		} else {
			// The backend replaced the text; start over on a fresh line.
			fmt.Fprintf(p.w, "\n%s", m.Text)
		}
		p.text[m.ID] = m.Text
	}

	for _, tc := range m.ToolCalls[p.calls[m.ID]:] {
		if p.text[m.ID] != "" || p.calls[m.ID] > 0 {
			fmt.Fprintln(p.w)
		}
		call := "-> " + tc.Name
		if args := formatArgs(tc.Args); args != "" {
			call += " " + args
		}
		fmt.Fprint(p.w, p.st.Tool.Render(call))
		p.calls[m.ID]++
	}
	p.last = m.ID
}

func (p *printer) label(m adkchat.Message) string {
	if m.Role == adkchat.RoleUser {
		return p.st.User.Render("you")
	}
	author := m.Author
	if author == "" {
		author = adkchat.DefaultAuthor
	}
	return p.st.Author.Render(author)
}

// finish writes the sources and the error of a completed turn.
func (p *printer) finish(s adkchat.State) {
	if p.last != "" {
		fmt.Fprintln(p.w)
	}

	var fresh []adkchat.Citation
	for _, c := range s.Sources {
		if !p.sources[c.URL] {
			p.sources[c.URL] = true
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.st.Header.Render("Sources"))
		for _, c := range fresh {
			fmt.Fprintf(p.w, "  %s %s\n", c.Title, p.st.Source.Render(c.URL))
		}
	}

	if s.Error != "" {
		fmt.Fprintln(p.w, p.st.Error.Render("error: "+s.Error))
	}
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(data)
}

// writeSessions writes sessions as a table.
func writeSessions(w io.Writer, sessions []cache.Summary, st styles) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, st.Dim.Render("No sessions."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.Dim).
		Headers("ID", "UPDATED", "TITLE")
	for _, s := range sessions {
		updated := "-"
		if !s.LastUpdateTime.IsZero() {
			updated = s.LastUpdateTime.Local().Format(time.DateTime)
		}
		title := s.Title
		if s.Streaming {
			title += " (streaming)"
		}
		t.Row(s.ID, updated, title)
	}
	fmt.Fprintln(w, t.Render())
}

// writeState writes s in format: text, json or yaml.
func writeState(w io.Writer, s adkchat.State, format string, st styles) error {
	switch format {
	case "", "text":
		p := newPrinter(w, st, true)
		p.render(s)
		p.finish(s)
		if s.DraftResponse != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, st.Header.Render("Draft"))
			fmt.Fprintln(w, s.DraftResponse)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: want text, json or yaml", format)
	}
}
