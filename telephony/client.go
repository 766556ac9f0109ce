// Package telephony places outbound PSTN calls through a Twilio-shaped
// Programmable Voice REST API: POST .../Calls.json with the destination,
// caller ID, and a control URL the provider fetches once the call is
// answered.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentplexus/callbridge"
)

// Client is a minimal Programmable Voice REST client.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// Config configures the Client.
type Config struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a telephony Client. AccountSID and AuthToken fall back to
// the TELEPHONY_ACCOUNT_SID and TELEPHONY_AUTH_TOKEN environment
// variables when left zero in cfg.
func New(cfg Config) (*Client, error) {
	accountSID := cfg.AccountSID
	if accountSID == "" {
		accountSID = os.Getenv("TELEPHONY_ACCOUNT_SID")
	}
	if accountSID == "" {
		return nil, fmt.Errorf("%w: TELEPHONY_ACCOUNT_SID is required", callbridge.ErrConfig)
	}

	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("TELEPHONY_AUTH_TOKEN")
	}
	if authToken == "" {
		return nil, fmt.Errorf("%w: TELEPHONY_AUTH_TOKEN is required", callbridge.ErrConfig)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// callResource mirrors the subset of the provider's Call resource this
// client needs.
type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// PlaceOutbound instructs the provider to dial to from from, fetching
// its TwiML instructions from controlURL once answered. It returns the
// provider's call identifier (SID).
func (c *Client) PlaceOutbound(ctx context.Context, to, from, controlURL string, timeout time.Duration) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", from)
	data.Set("Url", controlURL)
	if timeout > 0 {
		data.Set("Timeout", strconv.Itoa(int(timeout.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", callbridge.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", callbridge.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", callbridge.ErrProvider, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: provider rejected call with status %d: %s", callbridge.ErrProvider, resp.StatusCode, string(body))
	}

	var call callResource
	if err := json.Unmarshal(body, &call); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", callbridge.ErrProvider, err)
	}

	return call.SID, nil
}

// Hangup ends an in-progress call.
func (c *Client) Hangup(ctx context.Context, callSID string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	data := url.Values{}
	data.Set("Status", "completed")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", callbridge.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", callbridge.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: hangup rejected with status %d: %s", callbridge.ErrProvider, resp.StatusCode, string(body))
	}

	return nil
}
