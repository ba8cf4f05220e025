package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/client"
	"github.com/spetersoncode/adkchat/internal/logx"
	"github.com/spetersoncode/adkchat/session"
	"github.com/spetersoncode/adkchat/stream"
)

// Backend is the ADK server as seen by the cache.
// *client.Client satisfies it.
type Backend interface {
	stream.Transport
	CreateSession(ctx context.Context, id string) error
	GetSession(ctx context.Context, id string) (*client.Session, error)
	ListSessions(ctx context.Context) ([]client.Session, error)
}

// Summary describes a stored session for listings.
type Summary struct {
	ID             string    `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	LastUpdateTime time.Time `json:"last_update_time" yaml:"last_update_time"`
	Streaming      bool      `json:"streaming" yaml:"streaming"`
}

// Cache holds conversation state keyed by session id.
type Cache struct {
	backend    Backend
	ids        *adkchat.IDGenerator
	reducer    *session.Reducer
	controller *stream.Controller
	logger     zerolog.Logger

	mu      sync.RWMutex
	slots   map[string]adkchat.State
	subs    map[string]map[int]chan adkchat.State
	nextSub int
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	events      chan<- stream.Event
	reducerOpts []session.Option
	loggerIsSet bool
}

// WithLogger sets the logger for the cache and its stream controller.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
		o.loggerIsSet = true
	}
}

// WithStreamEvents sets a channel receiving run lifecycle events.
// Events are sent non-blocking; if the channel is full, events are dropped.
func WithStreamEvents(ch chan<- stream.Event) Option {
	return func(o *options) {
		o.events = ch
	}
}

// WithReducerOptions passes options to the reducer.
func WithReducerOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.reducerOpts = append(o.reducerOpts, opts...)
	}
}

// New creates a cache backed by backend.
func New(backend Backend, opts ...Option) *Cache {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.loggerIsSet {
		o.logger = logx.Component("cache")
	}

	c := &Cache{
		backend: backend,
		ids:     adkchat.NewIDGenerator(),
		logger:  o.logger,
		slots:   make(map[string]adkchat.State),
		subs:    make(map[string]map[int]chan adkchat.State),
	}
	c.reducer = session.NewReducer(c.ids, o.reducerOpts...)

	ctrlOpts := []stream.Option{stream.WithEvents(o.events)}
	if o.loggerIsSet {
		ctrlOpts = append(ctrlOpts, stream.WithLogger(o.logger))
	}
	c.controller = stream.NewController(backend, c, c.reducer, ctrlOpts...)
	return c
}

// Get returns a copy of the state of conversation id.
// Unknown conversations have the empty state.
func (c *Cache) Get(id string) adkchat.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots[id].Clone()
}

// Has reports whether conversation id has a slot.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slots[id]
	return ok
}

// Set replaces the state of conversation id.
func (c *Cache) Set(id string, s adkchat.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(id, s.Clone())
}

// Update replaces the state of conversation id with fn applied to it and
// returns the result. fn runs under the cache lock and must not call back
// into the cache.
func (c *Cache) Update(id string, fn func(adkchat.State) adkchat.State) adkchat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := fn(c.slots[id].Clone())
	c.store(id, next)
	return next.Clone()
}

// store writes s and notifies subscribers. Callers hold c.mu.
func (c *Cache) store(id string, s adkchat.State) {
	c.slots[id] = s
	for _, ch := range c.subs[id] {
		publish(ch, s.Clone())
	}
}

// publish replaces whatever ch holds with s.
func publish(ch chan adkchat.State, s adkchat.State) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Subscribe returns a channel carrying the latest state of conversation id,
// starting with the current one. Call cancel to release it; the channel is
// closed afterwards.
func (c *Cache) Subscribe(id string) (<-chan adkchat.State, func()) {
	ch := make(chan adkchat.State, 1)

	c.mu.Lock()
	key := c.nextSub
	c.nextSub++
	if c.subs[id] == nil {
		c.subs[id] = make(map[int]chan adkchat.State)
	}
	c.subs[id][key] = ch
	ch <- c.slots[id].Clone()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs[id], key)
			if len(c.subs[id]) == 0 {
				delete(c.subs, id)
			}
			close(ch)
		})
	}
}

// SendMessage appends a user message to conversation id and starts a turn.
func (c *Cache) SendMessage(ctx context.Context, id, text string) (*stream.Run, error) {
	if strings.TrimSpace(text) == "" {
		return nil, adkchat.NewUserInputError("message text is empty", 0, adkchat.ErrEmptyInput)
	}

	c.controller.Stop(id)
	msg := c.reducer.NewUserMessage(text)
	c.Update(id, func(s adkchat.State) adkchat.State {
		return c.reducer.Append(s, msg)
	})
	return c.controller.Start(ctx, id, stream.TextPayload(text)), nil
}

// StartConversation creates a new session on the backend and sends text as
// its first message. Nothing is streamed if the session cannot be created.
func (c *Cache) StartConversation(ctx context.Context, text string) (string, *stream.Run, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, adkchat.NewUserInputError("message text is empty", 0, adkchat.ErrEmptyInput)
	}

	id := uuid.NewString()
	if err := c.backend.CreateSession(ctx, id); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	c.logger.Info().Str("conversation_id", id).Msg("conversation created")

	run, err := c.SendMessage(ctx, id, text)
	if err != nil {
		return "", nil, err
	}
	return id, run, nil
}

// Resume restarts the interrupted turn invocationID of conversation id.
func (c *Cache) Resume(ctx context.Context, id, invocationID string) (*stream.Run, error) {
	if invocationID == "" {
		return nil, adkchat.NewUserInputError("invocation id is empty", 0, adkchat.ErrEmptyInput)
	}
	return c.controller.Resume(ctx, id, invocationID), nil
}

// Stop cancels the live turn of conversation id and reports whether there was one.
func (c *Cache) Stop(id string) bool {
	return c.controller.Stop(id)
}

// Streaming reports whether conversation id has a live turn.
func (c *Cache) Streaming(id string) bool {
	return c.controller.Active(id)
}

// Current returns the live turn of conversation id, or nil.
func (c *Cache) Current(id string) *stream.Run {
	return c.controller.Current(id)
}

// Load returns the state of conversation id, fetching its history from the
// backend if the cache has not seen it yet.
func (c *Cache) Load(ctx context.Context, id string) (adkchat.State, error) {
	if c.Has(id) {
		return c.Get(id), nil
	}

	s, err := c.fetch(ctx, id)
	if err != nil {
		return adkchat.State{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.slots[id]; ok {
		return cur.Clone(), nil
	}
	c.store(id, s)
	return s.Clone(), nil
}

// Ensure returns the state of conversation id like Load, creating the
// session on the backend when it does not exist there yet.
func (c *Cache) Ensure(ctx context.Context, id string) (adkchat.State, error) {
	s, err := c.Load(ctx, id)
	if !errors.Is(err, adkchat.ErrSessionNotFound) {
		return s, err
	}

	if err := c.backend.CreateSession(ctx, id); err != nil {
		return adkchat.State{}, fmt.Errorf("failed to create session: %w", err)
	}
	c.logger.Info().Str("conversation_id", id).Msg("conversation created")

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.slots[id]; ok {
		return cur.Clone(), nil
	}
	c.store(id, adkchat.State{})
	return adkchat.State{}, nil
}

// Refresh replaces the state of conversation id with its history from the
// backend. A conversation with a live turn is returned unchanged.
func (c *Cache) Refresh(ctx context.Context, id string) (adkchat.State, error) {
	if c.Streaming(id) {
		return c.Get(id), nil
	}

	s, err := c.fetch(ctx, id)
	if err != nil {
		return adkchat.State{}, err
	}
	if c.Streaming(id) {
		return c.Get(id), nil
	}
	c.Set(id, s)
	return s, nil
}

func (c *Cache) fetch(ctx context.Context, id string) (adkchat.State, error) {
	sess, err := c.backend.GetSession(ctx, id)
	if err != nil {
		return adkchat.State{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	s := c.reducer.Fold(sess.Events)
	c.logger.Debug().
		Str("conversation_id", id).
		Int("events", len(sess.Events)).
		Int("messages", len(s.Messages)).
		Msg("history loaded")
	return s, nil
}

// Sessions lists the backend's sessions, most recently updated first.
func (c *Cache) Sessions(ctx context.Context) ([]Summary, error) {
	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]Summary, len(sessions))
	for i, s := range sessions {
		out[i] = Summary{
			ID:             s.ID,
			Title:          s.Title(),
			LastUpdateTime: s.LastUpdateTime,
			Streaming:      c.Streaming(s.ID),
		}
	}
	slices.SortStableFunc(out, func(a, b Summary) int {
		return b.LastUpdateTime.Compare(a.LastUpdateTime)
	})
	return out, nil
}

// Evict stops any live turn of conversation id and forgets its state.
// Subscribers receive the empty state.
func (c *Cache) Evict(id string) {
	c.controller.Stop(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, id)
	for _, ch := range c.subs[id] {
		publish(ch, adkchat.State{})
	}
}

// Close stops every live turn.
func (c *Cache) Close() {
	c.controller.StopAll()
}
