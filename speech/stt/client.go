// Package stt is a thin adapter over an external speech-to-text
// provider: a raw WAV body POSTed with an API-key header, JSON
// transcript back.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/agentplexus/callbridge"
)

// Client transcribes WAV audio to text.
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

// New creates an STT client. APIKey falls back to the STT_API_KEY
// environment variable.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("STT_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: STT_API_KEY is required", callbridge.ErrConfig)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepgram.com/v1/listen"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}, nil
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe sends WAV bytes and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", callbridge.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", callbridge.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", callbridge.ErrUpstream, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: transcription failed with status %d: %s", callbridge.ErrUpstream, resp.StatusCode, string(body))
	}

	var result transcriptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", callbridge.ErrUpstream, err)
	}

	return result.Transcript, nil
}
