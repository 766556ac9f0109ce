// Package mediastream owns the single WebSocket each bound Call speaks
// and listens through: paced outbound frame delivery and
// silence-timeout inbound accumulation.
package mediastream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/callbridge"
)

// FrameSizeBytes is one 20 ms mu-law frame at 8 kHz mono.
const FrameSizeBytes = callbridge.FrameSizeBytes

const (
	defaultFrameInterval    = 20 * time.Millisecond
	defaultSilenceThreshold = 2000 * time.Millisecond
	defaultResponseTimeout  = 60000 * time.Millisecond
	defaultTailPerChar      = 50 * time.Millisecond
)

// Session is the bidirectional media channel bound to exactly one Call.
// Outbound sends and inbound accumulation may not run concurrently with
// themselves (the state machine above Session already guarantees a
// Call's speak and listen never overlap); Session additionally
// serializes the underlying websocket writer, which gorilla/websocket
// requires.
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	frames     chan []byte
	peerClosed chan struct{}
	closeOnce  sync.Once
	listening  atomic.Bool

	frameInterval    time.Duration
	silenceThreshold time.Duration
	responseTimeout  time.Duration
	tailPerChar      time.Duration
}

// Option configures timing parameters; tests override the production
// defaults to keep cases fast.
type Option func(*Session)

// WithFrameInterval overrides the 20 ms inter-frame pacing sleep.
func WithFrameInterval(d time.Duration) Option { return func(s *Session) { s.frameInterval = d } }

// WithSilenceThreshold overrides the turn-end silence gap.
func WithSilenceThreshold(d time.Duration) Option {
	return func(s *Session) { s.silenceThreshold = d }
}

// WithResponseTimeout overrides the overall listen bound.
func WithResponseTimeout(d time.Duration) Option { return func(s *Session) { s.responseTimeout = d } }

// WithTailPerChar overrides the trailing-tail-per-character heuristic.
func WithTailPerChar(d time.Duration) Option { return func(s *Session) { s.tailPerChar = d } }

// New wraps an already-upgraded WebSocket connection and starts its
// background read loop.
func New(conn *websocket.Conn, opts ...Option) *Session {
	s := &Session{
		conn:             conn,
		frames:           make(chan []byte, 256),
		peerClosed:       make(chan struct{}),
		frameInterval:    defaultFrameInterval,
		silenceThreshold: defaultSilenceThreshold,
		responseTimeout:  defaultResponseTimeout,
		tailPerChar:      defaultTailPerChar,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.readLoop()
	return s
}

type wireMessage struct {
	Event string        `json:"event"`
	Media *mediaPayload `json:"media,omitempty"`
	Start *startPayload `json:"start,omitempty"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type startPayload struct {
	StreamSID string `json:"streamSid"`
}

// readLoop decodes incoming frames for the lifetime of the connection.
// media frames are delivered to Listen only while a listen is active;
// during SPEAKING (or between turns) they are discarded, matching the
// no-barge-in policy.
func (s *Session) readLoop() {
	defer s.markPeerClosed()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "media":
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				continue
			}
			if s.listening.Load() {
				select {
				case s.frames <- raw:
				default:
				}
			}
		case "stop":
			return
		}
	}
}

func (s *Session) markPeerClosed() {
	s.closeOnce.Do(func() {
		close(s.peerClosed)
	})
}

// Send paces mulaw over the wire in 160-byte frames with a 20 ms
// inter-frame sleep, then waits the trailing-tail heuristic
// (tailPerChar x the number of characters in text) before returning.
func (s *Session) Send(ctx context.Context, mulaw []byte, text string) error {
	for i := 0; i < len(mulaw); i += FrameSizeBytes {
		end := i + FrameSizeBytes
		if end > len(mulaw) {
			end = len(mulaw)
		}

		if err := s.writeMediaFrame(mulaw[i:end]); err != nil {
			return fmt.Errorf("%w: %v", callbridge.ErrPeerClosed, err)
		}

		if err := s.sleep(ctx, s.frameInterval); err != nil {
			return err
		}
	}

	return s.sleep(ctx, s.tailPerChar*time.Duration(utf8.RuneCountInString(text)))
}

func (s *Session) writeMediaFrame(chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteJSON(wireMessage{
		Event: "media",
		Media: &mediaPayload{Payload: base64.StdEncoding.EncodeToString(chunk)},
	})
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Listen accumulates mu-law payloads until SILENCE_THRESHOLD elapses
// with no new frame, returning the accumulated buffer. The silence
// timer only arms once the first frame of the utterance has arrived,
// so a human who pauses before speaking (or never speaks) is bounded
// by RESPONSE_TIMEOUT rather than being cut off at SILENCE_THRESHOLD
// with an empty buffer. It fails with ErrListenTimeout if
// RESPONSE_TIMEOUT elapses first, or ErrPeerClosed if the connection
// ends mid-listen.
func (s *Session) Listen(ctx context.Context) ([]byte, error) {
	s.listening.Store(true)
	defer s.listening.Store(false)

	var buf []byte

	silence := time.NewTimer(s.silenceThreshold)
	silence.Stop()
	defer silence.Stop()
	var silenceC <-chan time.Time

	overall := time.NewTimer(s.responseTimeout)
	defer overall.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-overall.C:
			return nil, callbridge.ErrListenTimeout
		case <-s.peerClosed:
			return nil, callbridge.ErrPeerClosed
		case <-silenceC:
			return buf, nil
		case frame := <-s.frames:
			buf = append(buf, frame...)
			if !silence.Stop() {
				select {
				case <-silence.C:
				default:
				}
			}
			silence.Reset(s.silenceThreshold)
			silenceC = silence.C
		}
	}
}

// Done reports whether the peer has closed the connection.
func (s *Session) Done() <-chan struct{} {
	return s.peerClosed
}

// Close terminates the underlying connection.
func (s *Session) Close() error {
	s.markPeerClosed()
	return s.conn.Close()
}
