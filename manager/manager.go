// Package manager implements the Call Manager facade: the agent-facing
// initiate/continue/speak_only/end surface, the call registry, and the
// correlation of inbound media streams to pending calls.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentplexus/callbridge"
	"github.com/agentplexus/callbridge/callstate"
	"github.com/agentplexus/callbridge/mediastream"
	"github.com/agentplexus/callbridge/mulaw"
)

// Telephony places and ends outbound PSTN calls.
type Telephony interface {
	PlaceOutbound(ctx context.Context, to, from, controlURL string, timeout time.Duration) (string, error)
	Hangup(ctx context.Context, callSID string) error
}

// Synthesizer turns text into linear PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// Transcriber turns a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Config holds the manager's fixed per-deployment parameters.
type Config struct {
	// FromNumber is the system's outbound phone number.
	FromNumber string
	// ToNumber is the human's phone number, dialed on every initiate.
	ToNumber string
	// ControlBaseURL is the publicly routable base URL the provider
	// fetches the control descriptor from (e.g. https://bridge.example.com).
	ControlBaseURL string
	// Voice is the TTS voice identifier.
	Voice string

	BindTimeout      time.Duration
	BindPollInterval time.Duration
	PlaceCallTimeout time.Duration
	UnboundGrace     time.Duration

	// MediaSessionOptions tunes the pacing/timeout knobs of every media
	// session this manager binds; tests shrink them, production leaves
	// them at mediastream's spec-mandated defaults.
	MediaSessionOptions []mediastream.Option
}

func (c Config) withDefaults() Config {
	if c.BindTimeout == 0 {
		c.BindTimeout = 10 * time.Second
	}
	if c.BindPollInterval == 0 {
		c.BindPollInterval = 100 * time.Millisecond
	}
	if c.PlaceCallTimeout == 0 {
		c.PlaceCallTimeout = 60 * time.Second
	}
	if c.UnboundGrace == 0 {
		c.UnboundGrace = 5 * time.Second
	}
	if c.Voice == "" {
		c.Voice = "default"
	}
	return c
}

type entry struct {
	call    *callstate.Call
	session atomic.Pointer[mediastream.Session]
}

// Manager is the Call Manager facade.
type Manager struct {
	telephony Telephony
	tts       Synthesizer
	stt       Transcriber
	cfg       Config
	logger    *slog.Logger

	nextID uint64

	mu    sync.Mutex
	calls map[string]*entry
	order []string
}

// New creates a Manager. It does not start any background work; the
// caller is expected to also start a control.Server with this Manager
// as its StreamAcceptor.
func New(telephony Telephony, tts Synthesizer, stt Transcriber, cfg Config) *Manager {
	return &Manager{
		telephony: telephony,
		tts:       tts,
		stt:       stt,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
		calls:     make(map[string]*entry),
	}
}

func (m *Manager) newCallID() string {
	n := atomic.AddUint64(&m.nextID, 1)
	return fmt.Sprintf("call-%d", n)
}

// AcceptStream implements control.StreamAcceptor. It scans the
// registry in call-identity order and binds the first Call awaiting a
// stream; unmatched streams are closed after a short idle grace period.
func (m *Manager) AcceptStream(conn *websocket.Conn) {
	sess := mediastream.New(conn, m.cfg.MediaSessionOptions...)

	streamID := uuid.NewString()

	m.mu.Lock()
	var target *entry
	var targetID string
	for _, id := range m.order {
		e := m.calls[id]
		bound, _ := e.call.TryBindStream(streamID)
		if bound {
			target = e
			targetID = id
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		m.logger.Debug("media stream arrived with no pending call, closing after grace period")
		go func() {
			time.Sleep(m.cfg.UnboundGrace)
			_ = sess.Close()
		}()
		return
	}

	target.session.Store(sess)
	m.logger.Debug("media stream bound", "call_id", targetID)
}

// Initiate creates a Call, places the outbound call, waits for stream
// binding, then performs one speak-and-listen turn with agentMessage.
func (m *Manager) Initiate(ctx context.Context, agentMessage string) (callID string, humanReply string, err error) {
	id := m.newCallID()
	call := callstate.New(id, m.cfg.ToNumber, m.cfg.FromNumber)

	e := &entry{call: call}
	m.mu.Lock()
	m.calls[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	if err := call.MarkPendingStream(); err != nil {
		m.abandonCall(id, e)
		return "", "", err
	}

	controlURL := m.cfg.ControlBaseURL + "/twiml"
	if _, err := m.telephony.PlaceOutbound(ctx, m.cfg.ToNumber, m.cfg.FromNumber, controlURL, m.cfg.PlaceCallTimeout); err != nil {
		m.abandonCall(id, e)
		return "", "", err
	}

	sess, err := m.waitForBind(ctx, e)
	if err != nil {
		m.abandonCall(id, e)
		return "", "", err
	}

	reply, err := m.speakAndListen(ctx, call, sess, agentMessage)
	if err != nil {
		m.abandonCall(id, e)
		return "", "", err
	}

	return id, reply, nil
}

func (m *Manager) waitForBind(ctx context.Context, e *entry) (*mediastream.Session, error) {
	deadline := time.Now().Add(m.cfg.BindTimeout)
	for {
		if sess := e.session.Load(); sess != nil {
			return sess, nil
		}
		if time.Now().After(deadline) {
			_ = e.call.MarkBindTimeout()
			return nil, callbridge.ErrBindTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.BindPollInterval):
		}
	}
}

// Continue requires callID to exist and be ACTIVE, then performs one
// speak-and-listen turn.
func (m *Manager) Continue(ctx context.Context, callID, agentMessage string) (string, error) {
	e, ok := m.lookup(callID)
	if !ok {
		return "", callbridge.ErrUnknownCall
	}
	if err := e.call.RequireActive(); err != nil {
		return "", err
	}
	sess := e.session.Load()
	if sess == nil {
		return "", fmt.Errorf("%w: call %s has no bound stream", callbridge.ErrInvalidState, callID)
	}

	reply, err := m.speakAndListen(ctx, e.call, sess, agentMessage)
	if err != nil {
		m.abandonCall(callID, e)
		return "", err
	}
	return reply, nil
}

// SpeakOnly speaks agentMessage without listening, leaving history and
// state ready for a subsequent Continue.
func (m *Manager) SpeakOnly(ctx context.Context, callID, agentMessage string) error {
	e, ok := m.lookup(callID)
	if !ok {
		return callbridge.ErrUnknownCall
	}
	if err := e.call.RequireActive(); err != nil {
		return err
	}
	sess := e.session.Load()
	if sess == nil {
		return fmt.Errorf("%w: call %s has no bound stream", callbridge.ErrInvalidState, callID)
	}

	if err := m.speakSilently(ctx, e.call, sess, agentMessage); err != nil {
		m.abandonCall(callID, e)
		return err
	}
	if err := e.call.FinishSpeakOnly(); err != nil {
		return err
	}
	return nil
}

// End speaks a farewell, closes the stream, and removes the call.
func (m *Manager) End(ctx context.Context, callID, farewell string) error {
	e, ok := m.lookup(callID)
	if !ok {
		return callbridge.ErrUnknownCall
	}

	if sess := e.session.Load(); sess != nil && e.call.State() == callbridge.StateActive {
		if pcm, err := m.tts.Synthesize(ctx, farewell, m.cfg.Voice, 1.0); err == nil {
			_ = sess.Send(ctx, mulaw.EncodePCM16ToMulaw(pcm), farewell)
		}
	}

	e.call.End(farewell)
	if sess := e.session.Load(); sess != nil {
		_ = sess.Close()
	}
	m.removeCall(callID)
	return nil
}

// ActiveCallIDs returns the identifiers of every call currently held by
// the registry, in call-identity order.
func (m *Manager) ActiveCallIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Shutdown ends every active call with a canonical farewell. It does
// not stop the control server's listener; callers run that separately.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, id := range m.ActiveCallIDs() {
		if err := m.End(ctx, id, "goodbye, this call is ending"); err != nil {
			m.logger.Warn("shutdown: error ending call", "call_id", id, "error", err)
		}
	}
}

func (m *Manager) lookup(callID string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.calls[callID]
	return e, ok
}

func (m *Manager) removeCall(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.calls, callID)
	for i, id := range m.order {
		if id == callID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// abandonCall removes callID from the registry and closes its bound
// stream, if any. Every failure path that might leave a call mid-turn
// funnels through here so a stream is never leaked.
func (m *Manager) abandonCall(callID string, e *entry) {
	if sess := e.session.Load(); sess != nil {
		if err := sess.Close(); err != nil {
			m.logger.Warn("abandon call: error closing stream", "call_id", callID, "error", err)
		}
	}
	m.removeCall(callID)
}

func (m *Manager) speak(ctx context.Context, call *callstate.Call, sess *mediastream.Session, text string) error {
	pcm, err := m.tts.Synthesize(ctx, text, m.cfg.Voice, 1.0)
	if err != nil {
		call.AbortTurn()
		return err
	}

	if err := call.BeginSpeak(text); err != nil {
		return err
	}

	if err := sess.Send(ctx, mulaw.EncodePCM16ToMulaw(pcm), text); err != nil {
		call.AbortTurn()
		return err
	}

	return nil
}

// speakSilently synthesizes and sends text without recording it in the
// call's turn history, for speak_only: the utterance reaches the human
// but never appears as an agent/human turn.
func (m *Manager) speakSilently(ctx context.Context, call *callstate.Call, sess *mediastream.Session, text string) error {
	pcm, err := m.tts.Synthesize(ctx, text, m.cfg.Voice, 1.0)
	if err != nil {
		call.AbortTurn()
		return err
	}

	if err := call.BeginSpeakOnly(); err != nil {
		return err
	}

	if err := sess.Send(ctx, mulaw.EncodePCM16ToMulaw(pcm), text); err != nil {
		call.AbortTurn()
		return err
	}

	return nil
}

func (m *Manager) speakAndListen(ctx context.Context, call *callstate.Call, sess *mediastream.Session, text string) (string, error) {
	if err := m.speak(ctx, call, sess, text); err != nil {
		return "", err
	}

	if err := call.BeginListen(); err != nil {
		return "", err
	}

	buf, err := sess.Listen(ctx)
	if err != nil {
		call.AbortTurn()
		if errors.Is(err, callbridge.ErrPeerClosed) {
			return "", callbridge.ErrListenTimeout
		}
		return "", err
	}

	wav := mulaw.WrapPCM16AsWAV(mulaw.DecodeMulawToPCM16(buf), callbridge.SampleRate)

	reply, err := m.stt.Transcribe(ctx, wav)
	if err != nil {
		reply = "[transcription failed]"
	}

	if err := call.FinishListen(reply); err != nil {
		return "", err
	}

	return reply, nil
}

// Snapshot returns the observable state of callID, for agent-facing
// introspection and tests.
func (m *Manager) Snapshot(callID string) (callbridge.Snapshot, bool) {
	e, ok := m.lookup(callID)
	if !ok {
		return callbridge.Snapshot{}, false
	}
	return e.call.Snapshot(), true
}
