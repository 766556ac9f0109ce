// Package control serves the HTTP surface the telephony provider talks
// to: the control descriptor endpoint it fetches on answer, a health
// check, and the WebSocket upgrade that becomes a media stream.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// StreamAcceptor receives every successfully upgraded media-stream
// connection, bound or not; it is the Call Manager's correlation entry
// point.
type StreamAcceptor interface {
	AcceptStream(conn *websocket.Conn)
}

// SignatureVerifier validates an inbound request against a provider's
// webhook signature scheme before /twiml or /media-stream is served.
// A nil SignatureVerifier disables verification.
type SignatureVerifier func(r *http.Request) bool

// Server is the control HTTP endpoint.
type Server struct {
	publicHost string
	acceptor   StreamAcceptor
	verifier   SignatureVerifier
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithSignatureVerifier installs webhook signature verification ahead
// of /twiml and /media-stream.
func WithSignatureVerifier(v SignatureVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server. publicURL is the configured publicly routable
// base URL; its host becomes the authority in the control descriptor's
// wss:// stream URL. addr is the listen address (e.g. ":3333").
func New(publicURL, addr string, acceptor StreamAcceptor, opts ...Option) (*Server, error) {
	parsed, err := url.Parse(publicURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("control: invalid public URL %q: %w", publicURL, err)
	}

	s := &Server{
		publicHost: parsed.Host,
		acceptor:   acceptor,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/twiml", s.handleTwiML)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/media-stream", s.handleMediaStream)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler exposes the underlying http.Handler, mainly for tests driven
// through httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server; it blocks until the server is
// closed or shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) verified(r *http.Request) bool {
	if s.verifier == nil {
		return true
	}
	return s.verifier(r)
}

func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	if !s.verified(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	descriptor := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="wss://%s/media-stream"/>
  </Connect>
</Response>`, s.publicHost)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(descriptor)); err != nil {
		s.logger.Error("write control descriptor", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	if !s.verified(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("media stream upgrade failed", "error", err)
		return
	}

	s.acceptor.AcceptStream(conn)
}
