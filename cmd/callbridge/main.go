// Command callbridge runs the Call Manager's control HTTP server,
// wiring the telephony, TTS, and STT clients to the manager facade,
// and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/agentplexus/callbridge/config"
	"github.com/agentplexus/callbridge/control"
	"github.com/agentplexus/callbridge/manager"
	"github.com/agentplexus/callbridge/speech/stt"
	"github.com/agentplexus/callbridge/speech/tts"
	"github.com/agentplexus/callbridge/telephony"
)

func main() {
	if err := run(); err != nil {
		slog.Error("callbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	telClient, err := telephony.New(telephony.Config{
		AccountSID: cfg.ProviderAccountID,
		AuthToken:  cfg.ProviderAuthToken,
	})
	if err != nil {
		return fmt.Errorf("create telephony client: %w", err)
	}

	ttsClient, err := tts.New(tts.Config{APIKey: cfg.TTSAPIKey()})
	if err != nil {
		return fmt.Errorf("create tts client: %w", err)
	}

	sttClient, err := stt.New(stt.Config{APIKey: cfg.STTAPIKey()})
	if err != nil {
		return fmt.Errorf("create stt client: %w", err)
	}

	mgr := manager.New(telClient, ttsClient, sttClient, manager.Config{
		FromNumber:     cfg.OutboundNumber,
		ToNumber:       cfg.InboundNumber,
		ControlBaseURL: cfg.PublicBaseURL,
		BindTimeout:    cfg.BindTimeout,
	})

	var controlOpts []control.Option
	if cfg.WebhookSigningSecret != "" {
		controlOpts = append(controlOpts, control.WithSignatureVerifier(
			newSignatureVerifier(cfg.PublicBaseURL, cfg.WebhookSigningSecret)))
	}

	addr := net.JoinHostPort("", strconv.Itoa(cfg.ListenPort))
	srv, err := control.New(cfg.PublicBaseURL, addr, mgr, controlOpts...)
	if err != nil {
		return fmt.Errorf("create control server: %w", err)
	}

	agentAddr := net.JoinHostPort("", strconv.Itoa(cfg.AgentAPIPort))
	agentSrv := &http.Server{
		Addr:              agentAddr,
		Handler:           newAgentAPI(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		slog.Info("callbridge control server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		slog.Info("callbridge agent API listening", "addr", agentAddr)
		err := agentSrv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.Shutdown(shutdownCtx)
	_ = agentSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
