// Package config loads callbridge's startup configuration from the
// environment, applying defaults and validating eagerly so a
// misconfigured deployment fails at startup rather than mid-call.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentplexus/callbridge"
)

// Config is callbridge's full set of recognized startup options.
type Config struct {
	// ProviderAccountID and ProviderAuthToken authenticate against the
	// telephony provider's REST API.
	ProviderAccountID string
	ProviderAuthToken string

	// OutboundNumber is the system's own phone number; InboundNumber is
	// the human's phone number dialed on every initiate.
	OutboundNumber string
	InboundNumber  string

	// SpeechAPIKey authenticates against the TTS/STT providers. In
	// production the two may differ; callbridge accepts one key that
	// fronts both, with per-service overrides for mixed deployments.
	SpeechAPIKey    string
	TTSAPIKeyOrZero string
	STTAPIKeyOrZero string

	// PublicBaseURL is the publicly routable base URL the provider
	// fetches the control descriptor from.
	PublicBaseURL string

	// ListenPort is the control HTTP server's listen port (the
	// telephony-provider-facing surface: /twiml, /status, /media-stream).
	ListenPort int

	// AgentAPIPort is the agent-facing JSON-over-HTTP control plane's
	// listen port.
	AgentAPIPort int

	// WebhookSigningSecret, when set, enables form-signature
	// verification on /twiml and /media-stream. Left empty, no
	// verification is performed.
	WebhookSigningSecret string

	BindTimeout      time.Duration
	ResponseTimeout  time.Duration
	SilenceThreshold time.Duration
}

// Load reads configuration from the environment, applying defaults and
// failing fast on any missing required value.
func Load() (Config, error) {
	cfg := Config{
		ProviderAccountID:    envOr("CALLBRIDGE_PROVIDER_ACCOUNT_ID", ""),
		ProviderAuthToken:    envOr("CALLBRIDGE_PROVIDER_AUTH_TOKEN", ""),
		OutboundNumber:       envOr("CALLBRIDGE_OUTBOUND_NUMBER", ""),
		InboundNumber:        envOr("CALLBRIDGE_INBOUND_NUMBER", ""),
		SpeechAPIKey:         envOr("CALLBRIDGE_SPEECH_API_KEY", ""),
		TTSAPIKeyOrZero:      envOr("CALLBRIDGE_TTS_API_KEY", ""),
		STTAPIKeyOrZero:      envOr("CALLBRIDGE_STT_API_KEY", ""),
		PublicBaseURL:        envOr("CALLBRIDGE_PUBLIC_BASE_URL", ""),
		ListenPort:           envIntOr("CALLBRIDGE_LISTEN_PORT", 3333),
		AgentAPIPort:         envIntOr("CALLBRIDGE_AGENT_API_PORT", 3334),
		WebhookSigningSecret: envOr("CALLBRIDGE_WEBHOOK_SIGNING_SECRET", ""),
		BindTimeout:          envDurationOr("CALLBRIDGE_BIND_TIMEOUT", 10*time.Second),
		ResponseTimeout:      envDurationOr("CALLBRIDGE_RESPONSE_TIMEOUT", 60*time.Second),
		SilenceThreshold:     envDurationOr("CALLBRIDGE_SILENCE_THRESHOLD", 2*time.Second),
	}

	if strings.TrimSpace(cfg.ProviderAccountID) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_PROVIDER_ACCOUNT_ID must be set", callbridge.ErrConfig)
	}
	if strings.TrimSpace(cfg.ProviderAuthToken) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_PROVIDER_AUTH_TOKEN must be set", callbridge.ErrConfig)
	}
	if strings.TrimSpace(cfg.OutboundNumber) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_OUTBOUND_NUMBER must be set", callbridge.ErrConfig)
	}
	if strings.TrimSpace(cfg.InboundNumber) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_INBOUND_NUMBER must be set", callbridge.ErrConfig)
	}
	if strings.TrimSpace(cfg.SpeechAPIKey) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_SPEECH_API_KEY must be set", callbridge.ErrConfig)
	}
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_PUBLIC_BASE_URL must be set", callbridge.ErrConfig)
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_LISTEN_PORT must be in 1-65535", callbridge.ErrConfig)
	}
	if cfg.AgentAPIPort <= 0 || cfg.AgentAPIPort > 65535 {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_AGENT_API_PORT must be in 1-65535", callbridge.ErrConfig)
	}
	if cfg.BindTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_BIND_TIMEOUT must be > 0", callbridge.ErrConfig)
	}
	if cfg.ResponseTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_RESPONSE_TIMEOUT must be > 0", callbridge.ErrConfig)
	}
	if cfg.SilenceThreshold <= 0 {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_SILENCE_THRESHOLD must be > 0", callbridge.ErrConfig)
	}
	if cfg.SilenceThreshold >= cfg.ResponseTimeout {
		return Config{}, fmt.Errorf("%w: CALLBRIDGE_SILENCE_THRESHOLD must be less than CALLBRIDGE_RESPONSE_TIMEOUT", callbridge.ErrConfig)
	}

	return cfg, nil
}

// TTSAPIKey returns the per-service TTS key override, falling back to
// the shared SpeechAPIKey.
func (c Config) TTSAPIKey() string {
	if c.TTSAPIKeyOrZero != "" {
		return c.TTSAPIKeyOrZero
	}
	return c.SpeechAPIKey
}

// STTAPIKey returns the per-service STT key override, falling back to
// the shared SpeechAPIKey.
func (c Config) STTAPIKey() string {
	if c.STTAPIKeyOrZero != "" {
		return c.STTAPIKeyOrZero
	}
	return c.SpeechAPIKey
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
