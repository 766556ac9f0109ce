package main

import (
	"net/http"

	"github.com/agentplexus/callbridge/control"
	"github.com/agentplexus/callbridge/webhook"
)

// newSignatureVerifier builds a control.SignatureVerifier backed by
// webhook.VerifyFormSignature, checking the provider's form-post
// signature header against publicBaseURL joined with the request path.
func newSignatureVerifier(publicBaseURL, signingSecret string) control.SignatureVerifier {
	return func(r *http.Request) bool {
		if err := r.ParseForm(); err != nil {
			return false
		}
		signature := r.Header.Get("X-Twilio-Signature")
		if signature == "" {
			return false
		}
		requestURL := publicBaseURL + r.URL.Path
		return webhook.VerifyFormSignature(signingSecret, requestURL, r.Form, signature)
	}
}
