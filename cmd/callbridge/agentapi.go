package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agentplexus/callbridge"
	"github.com/agentplexus/callbridge/manager"
)

// newAgentAPI builds the agent-facing JSON-over-HTTP control plane: a
// thin transport over manager.Manager's four operations. The core
// spec treats this transport as out of scope; callbridge still needs
// one concrete surface a caller can drive.
func newAgentAPI(mgr *manager.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/calls", handleInitiate(mgr))
	mux.HandleFunc("POST /v1/calls/{id}/continue", handleContinue(mgr))
	mux.HandleFunc("POST /v1/calls/{id}/speak", handleSpeakOnly(mgr))
	mux.HandleFunc("POST /v1/calls/{id}/end", handleEnd(mgr))
	mux.HandleFunc("GET /v1/calls", handleActiveCallIDs(mgr))
	return mux
}

type messageRequest struct {
	Message string `json:"message"`
}

type initiateResponse struct {
	CallID string `json:"call_id"`
	Text   string `json:"text"`
}

type textResponse struct {
	Text string `json:"text"`
}

func handleInitiate(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		callID, reply, err := mgr.Initiate(r.Context(), req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, initiateResponse{CallID: callID, Text: reply})
	}
}

func handleContinue(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		reply, err := mgr.Continue(r.Context(), r.PathValue("id"), req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, textResponse{Text: reply})
	}
}

func handleSpeakOnly(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := mgr.SpeakOnly(r.Context(), r.PathValue("id"), req.Message); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ack"})
	}
}

func handleEnd(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := mgr.End(r.Context(), r.PathValue("id"), req.Message); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleActiveCallIDs(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"call_ids": mgr.ActiveCallIDs()})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, callbridge.ErrUnknownCall):
		status = http.StatusNotFound
	case errors.Is(err, callbridge.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, callbridge.ErrBindTimeout), errors.Is(err, callbridge.ErrListenTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, callbridge.ErrProvider), errors.Is(err, callbridge.ErrUpstream):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
