package control_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/callbridge/control"
)

type fakeAcceptor struct {
	accepted chan *websocket.Conn
}

func newFakeAcceptor() *fakeAcceptor {
	return &fakeAcceptor{accepted: make(chan *websocket.Conn, 4)}
}

func (f *fakeAcceptor) AcceptStream(conn *websocket.Conn) {
	f.accepted <- conn
}

func TestTwiMLReturnsControlDescriptor(t *testing.T) {
	srv, err := control.New("https://bridge.example.com", ":0", newFakeAcceptor())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/twiml", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<Stream url="wss://bridge.example.com/media-stream"/>`)
}

func TestStatusReturnsOK(t *testing.T) {
	srv, err := control.New("https://bridge.example.com", ":0", newFakeAcceptor())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUnknownPathReturns404(t *testing.T) {
	srv, err := control.New("https://bridge.example.com", ":0", newFakeAcceptor())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaStreamUpgradesAndHandsOffToAcceptor(t *testing.T) {
	acceptor := newFakeAcceptor()
	srv, err := control.New("https://bridge.example.com", ":0", acceptor)
	require.NoError(t, err)

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/media-stream"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	select {
	case conn := <-acceptor.accepted:
		require.NotNil(t, conn)
	case <-time.After(time.Second):
		t.Fatal("acceptor did not receive the upgraded connection")
	}
}

func TestSignatureVerifierRejectsInvalidRequests(t *testing.T) {
	srv, err := control.New("https://bridge.example.com", ":0", newFakeAcceptor(),
		control.WithSignatureVerifier(func(r *http.Request) bool { return false }))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/twiml", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
