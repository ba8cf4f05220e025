package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spetersoncode/adkchat"
)

// Content roles used by ADK.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleAgent = "agent"
)

// Actions carries the side effects an agent attached to an event.
type Actions struct {
	StateDelta      map[string]any `json:"stateDelta,omitempty"`
	ArtifactDelta   map[string]any `json:"artifactDelta,omitempty"`
	TransferToAgent string         `json:"transferToAgent,omitempty"`
	Escalate        bool           `json:"escalate,omitempty"`
}

// Event is one ADK event as delivered in an SSE frame or a session history.
type Event struct {
	ID           string
	InvocationID string
	// Author is the sub-agent that produced the event, or "user".
	Author  string
	Content *genai.Content
	// Partial is nil when the backend omitted the flag.
	Partial           *bool
	TurnComplete      bool
	GroundingMetadata *genai.GroundingMetadata
	ErrorCode         string
	ErrorMessage      string
	Actions           Actions
	Timestamp         time.Time
}

// Decode parses one event payload.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}

// Role returns the content role, or "" when the event has no content.
func (e Event) Role() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Role
}

// Text concatenates the text of every content part.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range e.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the function calls carried by the content parts, in order.
func (e Event) ToolCalls() []adkchat.ToolCall {
	if e.Content == nil {
		return nil
	}
	var calls []adkchat.ToolCall
	for _, p := range e.Content.Parts {
		if p == nil || p.FunctionCall == nil {
			continue
		}
		calls = append(calls, adkchat.ToolCall{
			Name: p.FunctionCall.Name,
			Args: p.FunctionCall.Args,
		})
	}
	return calls
}

// IsPartial reports whether the event was explicitly marked partial.
func (e Event) IsPartial() bool {
	return e.Partial != nil && *e.Partial
}

// IsExplicitlyFinal reports whether the event carried partial=false.
func (e Event) IsExplicitlyFinal() bool {
	return e.Partial != nil && !*e.Partial
}

// IsAgentRole reports whether the content was produced by the agent side.
func (e Event) IsAgentRole() bool {
	r := e.Role()
	return r == RoleModel || r == RoleAgent
}

// HasError reports whether the backend attached an error code or message.
func (e Event) HasError() bool {
	return e.ErrorCode != "" || e.ErrorMessage != ""
}

// Citations maps the web grounding chunks with a URI to citations, in order.
// Duplicates within the event are kept; callers dedupe against their state.
func (e Event) Citations() []adkchat.Citation {
	if e.GroundingMetadata == nil {
		return nil
	}
	var out []adkchat.Citation
	for _, c := range e.GroundingMetadata.GroundingChunks {
		if c == nil || c.Web == nil || c.Web.URI == "" {
			continue
		}
		out = append(out, adkchat.NewCitation(c.Web.URI, c.Web.Title))
	}
	return out
}

// wire mirrors the JSON envelope with both alias spellings.
type wire struct {
	ID                string         `json:"id"`
	InvocationID      string         `json:"invocationId"`
	InvocationIDSnake string         `json:"invocation_id"`
	Author            string         `json:"author"`
	Content           *wireContent   `json:"content"`
	Partial           *bool          `json:"partial"`
	TurnComplete      *bool          `json:"turnComplete"`
	TurnCompleteSnake *bool          `json:"turn_complete"`
	Grounding         *wireGrounding `json:"groundingMetadata"`
	GroundingSnake    *wireGrounding `json:"grounding_metadata"`
	ErrorCode         string         `json:"errorCode"`
	ErrorCodeSnake    string         `json:"error_code"`
	ErrorMessage      string         `json:"errorMessage"`
	ErrorMessageSnake string         `json:"error_message"`
	Actions           *wireActions   `json:"actions"`
	Timestamp         float64        `json:"timestamp"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text                  string        `json:"text"`
	FunctionCall          *wireCall     `json:"functionCall"`
	FunctionCallSnake     *wireCall     `json:"function_call"`
	FunctionResponse      *wireResponse `json:"functionResponse"`
	FunctionResponseSnake *wireResponse `json:"function_response"`
}

type wireCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wireGrounding struct {
	Chunks           []wireChunk      `json:"groundingChunks"`
	ChunksSnake      []wireChunk      `json:"grounding_chunks"`
	SearchEntry      *wireSearchEntry `json:"searchEntryPoint"`
	SearchEntrySnake *wireSearchEntry `json:"search_entry_point"`
	WebSearchQueries []string         `json:"webSearchQueries"`
}

type wireChunk struct {
	Web *wireWeb `json:"web"`
}

type wireWeb struct {
	URI    string `json:"uri"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

type wireSearchEntry struct {
	RenderedContent      string `json:"renderedContent"`
	RenderedContentSnake string `json:"rendered_content"`
}

type wireActions struct {
	StateDelta           map[string]any `json:"stateDelta"`
	StateDeltaSnake      map[string]any `json:"state_delta"`
	ArtifactDelta        map[string]any `json:"artifactDelta"`
	ArtifactDeltaSnake   map[string]any `json:"artifact_delta"`
	TransferToAgent      string         `json:"transferToAgent"`
	TransferToAgentSnake string         `json:"transfer_to_agent"`
	Escalate             bool           `json:"escalate"`
}

// UnmarshalJSON accepts both the camelCase and snake_case field spellings.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Event{
		ID:           w.ID,
		InvocationID: first(w.InvocationID, w.InvocationIDSnake),
		Author:       w.Author,
		Partial:      w.Partial,
		ErrorCode:    first(w.ErrorCode, w.ErrorCodeSnake),
		ErrorMessage: first(w.ErrorMessage, w.ErrorMessageSnake),
	}
	if tc := firstPtr(w.TurnComplete, w.TurnCompleteSnake); tc != nil {
		e.TurnComplete = *tc
	}
	if w.Timestamp > 0 {
		e.Timestamp = TimeFromSeconds(w.Timestamp)
	}
	if w.Content != nil {
		e.Content = w.Content.toGenai()
	}
	if g := firstPtr(w.Grounding, w.GroundingSnake); g != nil {
		e.GroundingMetadata = g.toGenai()
	}
	if a := w.Actions; a != nil {
		e.Actions = Actions{
			StateDelta:      firstMap(a.StateDelta, a.StateDeltaSnake),
			ArtifactDelta:   firstMap(a.ArtifactDelta, a.ArtifactDeltaSnake),
			TransferToAgent: first(a.TransferToAgent, a.TransferToAgentSnake),
			Escalate:        a.Escalate,
		}
	}
	return nil
}

// MarshalJSON writes the camelCase form ADK emits.
func (e Event) MarshalJSON() ([]byte, error) {
	type out struct {
		ID                string                   `json:"id,omitempty"`
		InvocationID      string                   `json:"invocationId,omitempty"`
		Author            string                   `json:"author,omitempty"`
		Content           *genai.Content           `json:"content,omitempty"`
		Partial           *bool                    `json:"partial,omitempty"`
		TurnComplete      bool                     `json:"turnComplete,omitempty"`
		GroundingMetadata *genai.GroundingMetadata `json:"groundingMetadata,omitempty"`
		ErrorCode         string                   `json:"errorCode,omitempty"`
		ErrorMessage      string                   `json:"errorMessage,omitempty"`
		Actions           *Actions                 `json:"actions,omitempty"`
		Timestamp         float64                  `json:"timestamp,omitempty"`
	}
	o := out{
		ID:                e.ID,
		InvocationID:      e.InvocationID,
		Author:            e.Author,
		Content:           e.Content,
		Partial:           e.Partial,
		TurnComplete:      e.TurnComplete,
		GroundingMetadata: e.GroundingMetadata,
		ErrorCode:         e.ErrorCode,
		ErrorMessage:      e.ErrorMessage,
	}
	if e.Actions.StateDelta != nil || e.Actions.ArtifactDelta != nil || e.Actions.TransferToAgent != "" || e.Actions.Escalate {
		a := e.Actions
		o.Actions = &a
	}
	if !e.Timestamp.IsZero() {
		o.Timestamp = float64(e.Timestamp.UnixMicro()) / 1e6
	}
	return json.Marshal(o)
}

// TimeFromSeconds converts ADK's float Unix seconds to a time, rounded to
// the microsecond so decimal fractions survive float representation.
func TimeFromSeconds(ts float64) time.Time {
	return time.UnixMicro(int64(math.Round(ts * 1e6)))
}

func (c *wireContent) toGenai() *genai.Content {
	content := &genai.Content{Role: c.Role}
	for _, p := range c.Parts {
		part := &genai.Part{Text: p.Text}
		if fc := firstPtr(p.FunctionCall, p.FunctionCallSnake); fc != nil {
			part.FunctionCall = &genai.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
		}
		if fr := firstPtr(p.FunctionResponse, p.FunctionResponseSnake); fr != nil {
			part.FunctionResponse = &genai.FunctionResponse{ID: fr.ID, Name: fr.Name, Response: fr.Response}
		}
		content.Parts = append(content.Parts, part)
	}
	return content
}

func (g *wireGrounding) toGenai() *genai.GroundingMetadata {
	md := &genai.GroundingMetadata{WebSearchQueries: g.WebSearchQueries}
	chunks := g.Chunks
	if chunks == nil {
		chunks = g.ChunksSnake
	}
	for _, c := range chunks {
		chunk := &genai.GroundingChunk{}
		if c.Web != nil {
			chunk.Web = &genai.GroundingChunkWeb{URI: c.Web.URI, Title: c.Web.Title, Domain: c.Web.Domain}
		}
		md.GroundingChunks = append(md.GroundingChunks, chunk)
	}
	if se := firstPtr(g.SearchEntry, g.SearchEntrySnake); se != nil {
		md.SearchEntryPoint = &genai.SearchEntryPoint{
			RenderedContent: first(se.RenderedContent, se.RenderedContentSnake),
		}
	}
	return md
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPtr[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

func firstMap(a, b map[string]any) map[string]any {
	if a != nil {
		return a
	}
	return b
}
