package callbridge

import "errors"

// Error taxonomy. All recoverable failures are one of these sentinels,
// wrapped with additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrConfig indicates a fatal startup configuration problem.
	ErrConfig = errors.New("config error")

	// ErrProvider indicates the telephony provider rejected a call
	// placement request.
	ErrProvider = errors.New("provider error")

	// ErrBindTimeout indicates no media stream arrived within BindTimeout
	// of placing the outbound call.
	ErrBindTimeout = errors.New("bind timeout")

	// ErrUpstream indicates a TTS or STT request to a speech provider
	// failed.
	ErrUpstream = errors.New("upstream error")

	// ErrListenTimeout indicates no end-of-utterance was detected within
	// ResponseTimeout of starting to listen.
	ErrListenTimeout = errors.New("listen timeout")

	// ErrUnknownCall indicates the agent referenced a call ID the
	// manager does not hold.
	ErrUnknownCall = errors.New("unknown call")

	// ErrInvalidState indicates the requested operation is not permitted
	// in the call's current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrPeerClosed indicates the WebSocket terminated unexpectedly.
	ErrPeerClosed = errors.New("peer closed")
)
