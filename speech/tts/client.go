// Package tts is a thin adapter over an external text-to-speech
// provider: a JSON POST carrying the text and voice, an API-key header,
// raw audio bytes back.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/agentplexus/callbridge"
)

// Client synthesizes text to linear PCM at 8 kHz mono.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a TTS client. APIKey falls back to the TTS_API_KEY
// environment variable when left zero in cfg.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("TTS_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: TTS_API_KEY is required", callbridge.ErrConfig)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}, nil
}

type synthesizeRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice_id"`
	Speed  float64 `json:"speed"`
	Format string  `json:"output_format"`
}

// Synthesize converts text to linear 16-bit PCM at 8 kHz mono. speed of
// zero is treated as the provider's default (1.0).
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if speed == 0 {
		speed = 1.0
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:   text,
		Voice:  voice,
		Speed:  speed,
		Format: "pcm_8000",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", callbridge.ErrUpstream, err)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", callbridge.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", callbridge.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", callbridge.ErrUpstream, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: synthesis failed with status %d: %s", callbridge.ErrUpstream, resp.StatusCode, string(audio))
	}

	return audio, nil
}
