// Package callbridge lets an autonomous agent hold a live telephone
// conversation with a human. An agent issues a text message; callbridge
// places an outbound PSTN call, speaks the message aloud, listens for a
// spoken reply, transcribes it, and returns the text to the agent. The
// same call can be continued over multiple turns and eventually closed.
//
// # Installation
//
//	go get github.com/agentplexus/callbridge
//
// # Architecture
//
//	manager.Manager   agent-facing initiate/continue/speak_only/end API
//	callstate.Call    per-call state machine and turn history
//	mediastream       paced send / VAD-timeout receive over one WebSocket
//	control           HTTP control endpoint + WebSocket upgrade
//	telephony         outbound call placement
//	speech/tts, speech/stt   speech provider adapters
//	mulaw             G.711 mu-law codec and WAV framing
//
// # Quick Start
//
//	cfg, _ := config.Load()
//	mgr := manager.New(telClient, ttsClient, sttClient, manager.Config{
//		FromNumber:     cfg.OutboundNumber,
//		ToNumber:       cfg.InboundNumber,
//		ControlBaseURL: cfg.PublicBaseURL,
//	})
//	srv, _ := control.New(cfg.PublicBaseURL, addr, mgr)
//	go srv.ListenAndServe()
package callbridge

// Version is the module version.
const Version = "0.1.0"

// Audio format constants for the media stream wire format.
const (
	// SampleRate is the fixed 8 kHz sample rate used throughout the bridge.
	SampleRate = 8000

	// FrameDurationMillis is the wire frame duration (20 ms).
	FrameDurationMillis = 20

	// FrameSizeBytes is the number of mu-law bytes per 20 ms frame at 8 kHz.
	FrameSizeBytes = SampleRate * FrameDurationMillis / 1000
)
