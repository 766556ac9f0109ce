package mediastream_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/callbridge"
	"github.com/agentplexus/callbridge/mediastream"
)

// dialSession opens a client-side connection against srv and returns the
// server-side Session built atop its counterpart.
func dialSession(t *testing.T, opts ...mediastream.Option) (*mediastream.Session, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	sessCh := make(chan *mediastream.Session, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sessCh <- mediastream.New(c, opts...)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	sess := <-sessCh

	cleanup := func() {
		_ = client.Close()
		_ = sess.Close()
		srv.Close()
	}
	return sess, client, cleanup
}

type wireMsg struct {
	Event string `json:"event"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

func TestSendPacesFramesAndAppliesTailSleep(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithFrameInterval(time.Millisecond),
		mediastream.WithTailPerChar(2*time.Millisecond),
	)
	defer cleanup()

	mulaw := make([]byte, mediastream.FrameSizeBytes*3+10)
	for i := range mulaw {
		mulaw[i] = byte(i)
	}

	var received [][]byte
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := client.ReadMessage()
			if err != nil {
				return
			}
			var m wireMsg
			require.NoError(t, json.Unmarshal(data, &m))
			raw, err := base64.StdEncoding.DecodeString(m.Media.Payload)
			require.NoError(t, err)
			mu.Lock()
			received = append(received, raw)
			mu.Unlock()
		}
	}()

	start := time.Now()
	err := sess.Send(context.Background(), mulaw, "hi")
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond+4*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_ = client.Close()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 4)
	assert.Len(t, received[0], mediastream.FrameSizeBytes)
	assert.Len(t, received[1], mediastream.FrameSizeBytes)
	assert.Len(t, received[2], mediastream.FrameSizeBytes)
	assert.Len(t, received[3], 10)
}

func TestListenAccumulatesUntilSilence(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithSilenceThreshold(30*time.Millisecond),
		mediastream.WithResponseTimeout(time.Second),
	)
	defer cleanup()

	frame := make([]byte, mediastream.FrameSizeBytes)
	for i := range frame {
		frame[i] = 0xAA
	}

	go func() {
		for i := 0; i < 3; i++ {
			_ = client.WriteJSON(wireMsg{Event: "media", Media: struct {
				Payload string `json:"payload"`
			}{Payload: base64.StdEncoding.EncodeToString(frame)}})
			time.Sleep(5 * time.Millisecond)
		}
	}()

	buf, err := sess.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mediastream.FrameSizeBytes*3, len(buf))
}

func TestListenWaitsForFirstFrameBeforeArmingSilence(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithSilenceThreshold(10*time.Millisecond),
		mediastream.WithResponseTimeout(60*time.Millisecond),
	)
	defer cleanup()

	frame := make([]byte, mediastream.FrameSizeBytes)
	go func() {
		time.Sleep(25 * time.Millisecond)
		_ = client.WriteJSON(wireMsg{Event: "media", Media: struct {
			Payload string `json:"payload"`
		}{Payload: base64.StdEncoding.EncodeToString(frame)}})
	}()

	buf, err := sess.Listen(context.Background())
	require.NoError(t, err, "a human who pauses past SILENCE_THRESHOLD before speaking must still get heard")
	assert.Equal(t, mediastream.FrameSizeBytes, len(buf))
}

func TestListenTimesOutWithContinuousFrames(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithSilenceThreshold(5*time.Millisecond),
		mediastream.WithResponseTimeout(20*time.Millisecond),
	)
	defer cleanup()

	frame := make([]byte, mediastream.FrameSizeBytes)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = client.WriteJSON(wireMsg{Event: "media", Media: struct {
					Payload string `json:"payload"`
				}{Payload: base64.StdEncoding.EncodeToString(frame)}})
			}
		}
	}()

	_, err := sess.Listen(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, callbridge.ErrListenTimeout)
}

func TestListenReturnsPeerClosedOnDisconnect(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithSilenceThreshold(time.Second),
		mediastream.WithResponseTimeout(5*time.Second),
	)
	defer cleanup()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = client.Close()
	}()

	_, err := sess.Listen(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, callbridge.ErrPeerClosed)
}

func TestBargeInFramesDuringSpeakingAreDiscarded(t *testing.T) {
	sess, client, cleanup := dialSession(t,
		mediastream.WithSilenceThreshold(20*time.Millisecond),
		mediastream.WithResponseTimeout(time.Second),
		mediastream.WithFrameInterval(time.Millisecond),
		mediastream.WithTailPerChar(0),
	)
	defer cleanup()

	bargeFrame := make([]byte, mediastream.FrameSizeBytes)
	for i := range bargeFrame {
		bargeFrame[i] = 0xFF
	}
	go func() {
		_ = client.WriteJSON(wireMsg{Event: "media", Media: struct {
			Payload string `json:"payload"`
		}{Payload: base64.StdEncoding.EncodeToString(bargeFrame)}})
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, sess.Send(context.Background(), make([]byte, mediastream.FrameSizeBytes), "a"))

	utteranceFrame := make([]byte, mediastream.FrameSizeBytes)
	for i := range utteranceFrame {
		utteranceFrame[i] = 0xAA
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = client.WriteJSON(wireMsg{Event: "media", Media: struct {
			Payload string `json:"payload"`
		}{Payload: base64.StdEncoding.EncodeToString(utteranceFrame)}})
	}()

	buf, err := sess.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, utteranceFrame, buf, "barge-in frame sent during Send must not appear in the listened buffer")
}
