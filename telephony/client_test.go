package telephony_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/callbridge/telephony"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := telephony.New(telephony.Config{})
	require.Error(t, err)

	_, err = telephony.New(telephony.Config{AccountSID: "AC123"})
	require.Error(t, err)
}

func TestPlaceOutboundReturnsSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.FormValue("To"))
		assert.Equal(t, "+15557654321", r.FormValue("From"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	client, err := telephony.New(telephony.Config{AccountSID: "AC1", AuthToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	sid, err := client.PlaceOutbound(context.Background(), "+15551234567", "+15557654321", "https://example.com/twiml", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "CA123", sid)
}

func TestPlaceOutboundSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer srv.Close()

	client, err := telephony.New(telephony.Config{AccountSID: "AC1", AuthToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.PlaceOutbound(context.Background(), "bad", "bad", "https://example.com/twiml", 0)
	require.Error(t, err)
}

func TestHangupSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := telephony.New(telephony.Config{AccountSID: "AC1", AuthToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.Hangup(context.Background(), "CA999")
	require.Error(t, err)
}
