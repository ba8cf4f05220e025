package stream

import (
	"context"
	"sync"
)

// Phase is the lifecycle position of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStarting   Phase = "starting"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleting Phase = "completing"
	PhaseCancelled  Phase = "cancelled"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transitions follow.
func (p Phase) Terminal() bool {
	return p == PhaseCompleting || p == PhaseCancelled || p == PhaseFailed
}

// Run is the handle of one turn on one conversation.
type Run struct {
	id             string
	conversationID string
	placeholderID  string
	cancel         context.CancelFunc
	done           chan struct{}

	mu           sync.Mutex
	phase        Phase
	err          error
	invocationID string
}

func newRun(id, conversationID string, cancel context.CancelFunc) *Run {
	return &Run{
		id:             id,
		conversationID: conversationID,
		cancel:         cancel,
		done:           make(chan struct{}),
		phase:          PhaseStarting,
	}
}

// ID returns the run's unique identifier.
func (r *Run) ID() string { return r.id }

// ConversationID returns the conversation the run belongs to.
func (r *Run) ConversationID() string { return r.conversationID }

// Done is closed once the run's goroutine has exited.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends or ctx is done and returns the run's error.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Phase returns the current phase.
func (r *Run) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Err returns the transport error of a failed run, nil otherwise.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// InvocationID returns the last invocation id seen on the stream.
// It is the id to resume the turn with after an interruption.
func (r *Run) InvocationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invocationID
}

// setPhase moves to p unless the run already reached a terminal phase.
func (r *Run) setPhase(p Phase, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase.Terminal() {
		return false
	}
	r.phase = p
	r.err = err
	return true
}

func (r *Run) noteInvocation(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	r.invocationID = id
	r.mu.Unlock()
}
