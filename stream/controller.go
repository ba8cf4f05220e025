package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/client"
	"github.com/spetersoncode/adkchat/event"
	"github.com/spetersoncode/adkchat/internal/logx"
	"github.com/spetersoncode/adkchat/session"
	"github.com/spetersoncode/adkchat/sse"
)

// errStale stops the read loop of a run that is no longer installed.
var errStale = errors.New("run superseded")

// Transport opens the event stream of a turn.
// *client.Client satisfies it.
type Transport interface {
	Run(ctx context.Context, req client.RunRequest) (io.ReadCloser, error)
}

// Store holds conversation state. Update must apply fn atomically for id
// and return the stored result.
type Store interface {
	Update(id string, fn func(adkchat.State) adkchat.State) adkchat.State
}

// Payload is what a run sends to the backend: a new user message, or the
// invocation id of a turn to resume.
type Payload struct {
	NewMessage   *genai.Content
	InvocationID string
}

// TextPayload builds the payload for a new user message.
func TextPayload(text string) Payload {
	return Payload{NewMessage: genai.NewContentFromText(text, genai.RoleUser)}
}

// Controller owns the live runs of every conversation.
type Controller struct {
	transport Transport
	store     Store
	reducer   *session.Reducer
	logger    zerolog.Logger
	events    chan<- Event

	mu      sync.Mutex
	handles map[string]*Run
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithEvents sets a channel receiving lifecycle events.
// Events are sent non-blocking; if the channel is full, events are dropped.
func WithEvents(ch chan<- Event) Option {
	return func(c *Controller) {
		c.events = ch
	}
}

// NewController creates a controller writing into store.
// A nil reducer gets one with a private id generator.
func NewController(transport Transport, store Store, reducer *session.Reducer, opts ...Option) *Controller {
	if reducer == nil {
		reducer = session.NewReducer(nil)
	}
	c := &Controller{
		transport: transport,
		store:     store,
		reducer:   reducer,
		logger:    logx.Component("stream"),
		handles:   make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a turn on conversation id, superseding any live run.
// Before it returns, the state shows the conversation as streaming with an
// empty open agent message. The request itself runs in the background and
// lives until the backend closes the stream, Stop or another Start revokes
// it, or ctx is canceled.
func (c *Controller) Start(ctx context.Context, id string, p Payload) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	run := newRun(uuid.NewString(), id, cancel)
	placeholder := c.reducer.NewPlaceholder()
	run.placeholderID = placeholder.ID

	c.mu.Lock()
	old := c.handles[id]
	if old != nil {
		old.cancel()
	}
	c.handles[id] = run
	c.store.Update(id, func(s adkchat.State) adkchat.State {
		if old != nil {
			s = closeOut(s, old, nil)
		}
		s = c.reducer.Append(s, placeholder)
		s.IsStreaming = true
		s.Error = ""
		return s
	})
	c.mu.Unlock()

	if old != nil {
		c.markCancelled(old)
	}

	c.logger.Info().
		Str("conversation_id", id).
		Str("run_id", run.id).
		Bool("resume", p.InvocationID != "").
		Msg("run started")
	emit(c.events, Event{Type: EventRunStarted, ConversationID: id, RunID: run.id, Phase: PhaseStarting})

	req := client.RunRequest{
		SessionID:    id,
		Streaming:    true,
		NewMessage:   p.NewMessage,
		InvocationID: p.InvocationID,
	}
	go c.run(runCtx, run, req)
	return run
}

// Resume restarts an interrupted turn from its invocation id.
func (c *Controller) Resume(ctx context.Context, id, invocationID string) *Run {
	return c.Start(ctx, id, Payload{InvocationID: invocationID})
}

// Stop cancels the live run of conversation id and finalizes its state.
// It reports whether a run was live.
func (c *Controller) Stop(id string) bool {
	c.mu.Lock()
	run := c.handles[id]
	if run == nil {
		c.mu.Unlock()
		return false
	}
	delete(c.handles, id)
	run.cancel()
	c.store.Update(id, func(s adkchat.State) adkchat.State {
		return closeOut(s, run, nil)
	})
	c.mu.Unlock()

	c.markCancelled(run)
	return true
}

// Active reports whether conversation id has a live run.
func (c *Controller) Active(id string) bool {
	return c.Current(id) != nil
}

// Current returns the live run of conversation id, or nil.
func (c *Controller) Current(id string) *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[id]
}

// Phase returns the phase of the live run of conversation id, or PhaseIdle.
func (c *Controller) Phase(id string) Phase {
	if run := c.Current(id); run != nil {
		return run.Phase()
	}
	return PhaseIdle
}

// StopAll cancels every live run.
func (c *Controller) StopAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.handles))
	for id := range c.handles {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.Stop(id)
	}
}

func (c *Controller) run(ctx context.Context, run *Run, req client.RunRequest) {
	defer close(run.done)
	defer run.cancel()

	body, err := c.transport.Run(ctx, req)
	if err != nil {
		c.finish(run, err)
		return
	}
	defer body.Close()

	r := &firstByteReader{r: body, fn: func() {
		if run.setPhase(PhaseStreaming, nil) {
			emit(c.events, Event{Type: EventRunStreaming, ConversationID: run.conversationID, RunID: run.id, Phase: PhaseStreaming})
		}
	}}

	err = sse.Read(ctx, r, func(data string) error {
		return c.handle(run, data)
	})
	c.finish(run, err)
}

// handle decodes one payload and applies it if run is still installed.
func (c *Controller) handle(run *Run, data string) error {
	ev, err := event.Decode([]byte(data))
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("conversation_id", run.conversationID).
			Str("run_id", run.id).
			Int("payload_bytes", len(data)).
			Msg("dropped malformed event")
		emit(c.events, Event{Type: EventDecodeError, ConversationID: run.conversationID, RunID: run.id, Phase: run.Phase(), Error: err})
		return nil
	}

	if ev.HasError() {
		c.logger.Warn().
			Str("conversation_id", run.conversationID).
			Str("run_id", run.id).
			Str("error_code", ev.ErrorCode).
			Str("error_message", ev.ErrorMessage).
			Msg("agent reported an error")
		emit(c.events, Event{
			Type:           EventAgentError,
			ConversationID: run.conversationID,
			RunID:          run.id,
			Phase:          run.Phase(),
			ErrorCode:      ev.ErrorCode,
			ErrorMessage:   ev.ErrorMessage,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handles[run.conversationID] != run {
		return errStale
	}
	run.noteInvocation(ev.InvocationID)
	c.store.Update(run.conversationID, func(s adkchat.State) adkchat.State {
		return c.reducer.Apply(s, ev)
	})
	return nil
}

// finish settles the run after its stream ended with err.
func (c *Controller) finish(run *Run, err error) {
	c.mu.Lock()
	current := c.handles[run.conversationID] == run
	if current {
		delete(c.handles, run.conversationID)
	}

	phase := PhaseCompleting
	switch {
	case !current || errors.Is(err, errStale) || adkchat.IsCanceled(err):
		phase = PhaseCancelled
		err = nil
	case err != nil:
		phase = PhaseFailed
	}

	if current {
		c.store.Update(run.conversationID, func(s adkchat.State) adkchat.State {
			return closeOut(s, run, err)
		})
	}
	c.mu.Unlock()

	if !run.setPhase(phase, err) {
		return
	}

	log := c.logger.Info()
	typ := EventRunFinished
	switch phase {
	case PhaseFailed:
		log = c.logger.Error().Err(err)
		typ = EventRunFailed
	case PhaseCancelled:
		typ = EventRunCancelled
	}
	log.Str("conversation_id", run.conversationID).
		Str("run_id", run.id).
		Str("phase", string(phase)).
		Msg("run ended")
	emit(c.events, Event{Type: typ, ConversationID: run.conversationID, RunID: run.id, Phase: phase, Error: err})
}

func (c *Controller) markCancelled(run *Run) {
	if !run.setPhase(PhaseCancelled, nil) {
		return
	}
	c.logger.Info().
		Str("conversation_id", run.conversationID).
		Str("run_id", run.id).
		Str("phase", string(PhaseCancelled)).
		Msg("run ended")
	emit(c.events, Event{Type: EventRunCancelled, ConversationID: run.conversationID, RunID: run.id, Phase: PhaseCancelled})
}

// closeOut finalizes the state left behind by run, recording err if set.
func closeOut(s adkchat.State, run *Run, err error) adkchat.State {
	s = session.Finalize(s)
	s = session.DropEmptyPlaceholder(s, run.placeholderID)
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

type firstByteReader struct {
	r    io.Reader
	once sync.Once
	fn   func()
}

func (f *firstByteReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if n > 0 {
		f.once.Do(f.fn)
	}
	return n, err
}
