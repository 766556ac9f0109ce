// Package callstate implements the per-call lifecycle state machine:
// NEW -> PENDING_STREAM -> ACTIVE -> (SPEAKING | LISTENING)* -> ENDED.
// A Call owns its conversation history and its bound media-stream
// handle; all transitions are synchronized under a single mutex so
// that turn operations on one Call never overlap.
package callstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentplexus/callbridge"
)

// Call is one in-progress or completed telephone conversation.
type Call struct {
	id        string
	createdAt time.Time
	to        string
	from      string

	mu       sync.RWMutex
	state    callbridge.State
	history  []callbridge.TurnEntry
	streamID string
}

// New creates a Call in the NEW state. id must be unique and is never
// reused within the lifetime of the manager that mints it.
func New(id, to, from string) *Call {
	return &Call{
		id:        id,
		createdAt: time.Now(),
		to:        to,
		from:      from,
		state:     callbridge.StateNew,
	}
}

// ID returns the call's opaque identifier.
func (c *Call) ID() string { return c.id }

// State returns the call's current state.
func (c *Call) State() callbridge.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// StreamID returns the bound media-stream handle identifier, or empty
// if unbound.
func (c *Call) StreamID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamID
}

// Snapshot returns a read-only copy of the call's observable state.
func (c *Call) Snapshot() callbridge.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]callbridge.TurnEntry, len(c.history))
	copy(history, c.history)

	return callbridge.Snapshot{
		CallID:    c.id,
		State:     c.state,
		CreatedAt: c.createdAt,
		History:   history,
		To:        c.to,
		From:      c.from,
	}
}

// MarkPendingStream transitions NEW -> PENDING_STREAM. Call Manager
// implementations MUST call this before placing the outbound call, so
// that a media stream arriving ahead of the provider's answer still
// finds a registered, bindable Call.
func (c *Call) MarkPendingStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateNew {
		return fmt.Errorf("%w: call %s is %s, not new", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StatePendingStream
	return nil
}

// TryBindStream attempts to bind a media-stream handle to this call.
// It reports false, nil when the call is not awaiting a stream (already
// bound, or past PENDING_STREAM) -- correlation is idempotent and a
// bound call silently ignores further streams.
func (c *Call) TryBindStream(streamID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StatePendingStream {
		return false, nil
	}
	c.streamID = streamID
	c.state = callbridge.StateActive
	return true, nil
}

// MarkBindTimeout transitions PENDING_STREAM -> ENDED after BindTimeout
// elapses with no stream bound.
func (c *Call) MarkBindTimeout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StatePendingStream {
		return fmt.Errorf("%w: call %s is %s, not pending_stream", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateEnded
	return nil
}

// BeginSpeak transitions ACTIVE -> SPEAKING and records the agent's
// utterance in history, synchronously with the transition. It fails
// with ErrInvalidState if another turn is already in flight.
func (c *Call) BeginSpeak(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateActive {
		return fmt.Errorf("%w: call %s is %s, not active", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateSpeaking
	c.history = append(c.history, callbridge.TurnEntry{Speaker: callbridge.SpeakerAgent, Text: text, At: time.Now()})
	return nil
}

// BeginSpeakOnly transitions ACTIVE -> SPEAKING without recording a
// history entry, used by speak_only: the spoken text is not part of
// the agent/human turn history, only the audio reaches the human.
func (c *Call) BeginSpeakOnly() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateActive {
		return fmt.Errorf("%w: call %s is %s, not active", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateSpeaking
	return nil
}

// FinishSpeakOnly transitions SPEAKING -> ACTIVE without listening, used
// by speak_only.
func (c *Call) FinishSpeakOnly() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateSpeaking {
		return fmt.Errorf("%w: call %s is %s, not speaking", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateActive
	return nil
}

// BeginListen transitions SPEAKING -> LISTENING.
func (c *Call) BeginListen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateSpeaking {
		return fmt.Errorf("%w: call %s is %s, not speaking", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateListening
	return nil
}

// FinishListen transitions LISTENING -> ACTIVE and records the human's
// reply in history, synchronously with the transition.
func (c *Call) FinishListen(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != callbridge.StateListening {
		return fmt.Errorf("%w: call %s is %s, not listening", callbridge.ErrInvalidState, c.id, c.state)
	}
	c.state = callbridge.StateActive
	c.history = append(c.history, callbridge.TurnEntry{Speaker: callbridge.SpeakerHuman, Text: text, At: time.Now()})
	return nil
}

// AbortTurn ends the call unconditionally after a failed turn (upstream
// error, peer close, listen timeout). Unlike End, it does not append a
// farewell entry.
func (c *Call) AbortTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = callbridge.StateEnded
}

// End appends a final agent entry with no reply and transitions to
// ENDED from any state.
func (c *Call) End(farewell string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, callbridge.TurnEntry{Speaker: callbridge.SpeakerAgent, Text: farewell, At: time.Now()})
	c.state = callbridge.StateEnded
}

// RequireActive returns ErrInvalidState unless the call is ACTIVE, for
// operations (continue, speak_only) that require a quiescent call
// before starting a new turn.
func (c *Call) RequireActive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != callbridge.StateActive {
		return fmt.Errorf("%w: call %s is %s, not active", callbridge.ErrInvalidState, c.id, c.state)
	}
	return nil
}
