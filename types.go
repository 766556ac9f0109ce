package callbridge

import "time"

// Speaker identifies who produced a turn entry.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerHuman Speaker = "human"
)

// TurnEntry is one line of conversation history.
type TurnEntry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// State is a Call's position in its lifecycle.
type State string

const (
	StateNew           State = "new"
	StatePendingStream State = "pending_stream"
	StateActive        State = "active"
	StateSpeaking      State = "speaking"
	StateListening     State = "listening"
	StateEnded         State = "ended"
)

// Snapshot is a read-only view of a Call at one instant, used for
// observability and for the agent-facing API's responses.
type Snapshot struct {
	CallID    string      `json:"call_id"`
	State     State       `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	History   []TurnEntry `json:"history"`
	To        string      `json:"to"`
	From      string      `json:"from"`
}
