package agui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/rs/zerolog"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/internal/logx"
	"github.com/spetersoncode/adkchat/stream"
)

// DefaultKeepAlive is the interval of SSE comment lines on idle feeds.
const DefaultKeepAlive = 15 * time.Second

// Conversations is the conversation store the bridge serves.
// *cache.Cache satisfies it.
type Conversations interface {
	Load(ctx context.Context, id string) (adkchat.State, error)
	Ensure(ctx context.Context, id string) (adkchat.State, error)
	Subscribe(id string) (<-chan adkchat.State, func())
	SendMessage(ctx context.Context, id, text string) (*stream.Run, error)
	StartConversation(ctx context.Context, text string) (string, *stream.Run, error)
	Resume(ctx context.Context, id, invocationID string) (*stream.Run, error)
	Stop(id string) bool
	Sessions(ctx context.Context) ([]cache.Summary, error)
}

// Handler serves conversations over HTTP, with AG-UI event feeds.
type Handler struct {
	conv      Conversations
	logger    zerolog.Logger
	keepAlive time.Duration
	mux       *http.ServeMux
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithKeepAlive sets the keep-alive interval of event feeds.
func WithKeepAlive(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.keepAlive = d
	}
}

// NewHandler creates a handler serving conv.
func NewHandler(conv Conversations, opts ...HandlerOption) *Handler {
	h := &Handler{
		conv:      conv,
		logger:    logx.Component("agui"),
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", h.listConversations)
	mux.HandleFunc("POST /api/conversations", h.createConversation)
	mux.HandleFunc("GET /api/conversations/{id}", h.getConversation)
	mux.HandleFunc("GET /api/conversations/{id}/events", h.conversationEvents)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.sendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/resume", h.resume)
	mux.HandleFunc("POST /api/conversations/{id}/stop", h.stop)
	mux.HandleFunc("POST /api/agent", h.runAgent)
	h.mux = mux
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.conv.Sessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeInput[MessageInput](r.Body)
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	id, run, err := h.conv.StartConversation(context.WithoutCancel(r.Context()), in.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, runBody{ID: id, RunID: run.ID()})
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	s, err := h.conv.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := DecodeInput[MessageInput](r.Body)
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	if _, err := h.conv.Load(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	run, err := h.conv.SendMessage(context.WithoutCancel(r.Context()), id, in.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runBody{ID: id, RunID: run.ID()})
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := DecodeInput[ResumeInput](r.Body)
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	if _, err := h.conv.Load(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	run, err := h.conv.Resume(context.WithoutCancel(r.Context()), id, in.InvocationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runBody{ID: id, RunID: run.ID()})
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	stopped := h.conv.Stop(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

// conversationEvents streams the AG-UI events of a conversation until the
// client disconnects.
func (h *Handler) conversationEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := h.logger.With().Str("conversation_id", id).Logger()

	if _, err := h.conv.Load(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		log.Error().Msg("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	states, cancel := h.conv.Subscribe(id)
	defer cancel()

	mapper := NewMapper(id)
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	log.Info().Msg("event feed opened")
	var sent int
	defer func() {
		log.Info().Int("events_sent", sent).Msg("event feed closed")
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			for _, ev := range mapper.Map(s) {
				if err := writeSSE(w, flusher, ev); err != nil {
					log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("failed to write SSE event")
					return
				}
				sent++
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// runAgent implements the AG-UI agent endpoint: it sends the last user
// message of the input to the thread and streams the turn.
func (h *Handler) runAgent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	input, err := DecodeInput[RunAgentInput](r.Body)
	if err != nil {
		h.logger.Warn().Err(err).Msg("invalid request body")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	prepared, err := input.Prepare()
	if err != nil {
		h.logger.Warn().Err(err).Msg("invalid input")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	threadID := prepared.ThreadID
	if threadID == "" {
		threadID, _, err = h.conv.StartConversation(ctx, prepared.Text)
	} else if _, err = h.conv.Ensure(r.Context(), threadID); err == nil {
		_, err = h.conv.SendMessage(ctx, threadID, prepared.Text)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	runID := prepared.RunID
	if runID == "" {
		runID = events.GenerateRunID()
	}
	log := h.logger.With().Str("conversation_id", threadID).Str("run_id", runID).Logger()

	flusher, ok := startSSE(w)
	if !ok {
		log.Error().Msg("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	states, cancel := h.conv.Subscribe(threadID)
	defer cancel()

	mapper := NewMapper(threadID, WithRunIDs(func() string { return runID }))
	if err := writeSSE(w, flusher, mapper.Begin()); err != nil {
		return
	}

	var sent int
	for {
		select {
		case <-r.Context().Done():
			log.Info().Dur("duration", time.Since(start)).Msg("client disconnected")
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			for _, ev := range mapper.Map(s) {
				if err := writeSSE(w, flusher, ev); err != nil {
					log.Warn().Err(err).Msg("failed to write SSE event")
					return
				}
				sent++
			}
			if !s.IsStreaming {
				log.Info().
					Dur("duration", time.Since(start)).
					Int("events_sent", sent).
					Msg("request completed")
				return
			}
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type runBody struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`
}

// writeError maps err to a status: bad input is 400, an unknown session
// 404, anything else is the backend's fault.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case adkchat.IsUserInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, adkchat.ErrSessionNotFound):
		status = http.StatusNotFound
	}
	h.logger.Warn().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev events.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	flusher.Flush()
	return nil
}
