package tts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/callbridge/speech/tts"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := tts.New(tts.Config{})
	require.Error(t, err)
}

func TestSynthesizeReturnsAudioBytes(t *testing.T) {
	wantAudio := []byte{1, 2, 3, 4}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-test", r.Header.Get("xi-api-key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(wantAudio)
	}))
	defer srv.Close()

	client, err := tts.New(tts.Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	audio, err := client.Synthesize(context.Background(), "hello", "voice-1", 1.0)
	require.NoError(t, err)
	assert.Equal(t, wantAudio, audio)
}

func TestSynthesizeSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client, err := tts.New(tts.Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "hello", "voice-1", 0)
	require.Error(t, err)
}
