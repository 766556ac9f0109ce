// Package webhook verifies inbound provider webhooks. It is a pure
// function collaborator: no I/O, no shared state, safe to call from
// any goroutine. Two schemes are supported: HMAC-SHA1 over sorted form
// parameters, and replay-protected Ed25519 over a timestamped body.
package webhook

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// VerifyFormSignature checks an HMAC-SHA1 form-post signature: the
// signature is computed over requestURL concatenated with every
// form parameter's name and value, sorted by name, and compared
// against the base64-encoded signature the provider supplied.
func VerifyFormSignature(authToken, requestURL string, form url.Values, signature string) bool {
	var b strings.Builder
	b.WriteString(requestURL)

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ReplayWindow bounds how far a timestamp may drift from now and still
// be accepted by VerifyReplayProtected.
const ReplayWindow = 5 * time.Minute

// VerifyReplayProtected checks an Ed25519 signature over
// "timestamp|rawBody" and rejects timestamps outside ReplayWindow of
// now, defending against replayed webhook deliveries.
func VerifyReplayProtected(publicKey ed25519.PublicKey, timestamp, rawBody string, signature []byte, now time.Time) error {
	sentAt, err := parseUnixTimestamp(timestamp)
	if err != nil {
		return fmt.Errorf("webhook: invalid timestamp %q: %w", timestamp, err)
	}

	drift := now.Sub(sentAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > ReplayWindow {
		return fmt.Errorf("webhook: timestamp %s outside %s replay window", timestamp, ReplayWindow)
	}

	signed := timestamp + "|" + rawBody
	if !ed25519.Verify(publicKey, []byte(signed), signature) {
		return fmt.Errorf("webhook: signature verification failed")
	}

	return nil
}

func parseUnixTimestamp(s string) (time.Time, error) {
	var sec int64
	if _, err := fmt.Sscanf(s, "%d", &sec); err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}
