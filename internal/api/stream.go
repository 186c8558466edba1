package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prepstack/interviewd/internal/hub"
)

// HandleStream handles GET /api/interviews/{sessionID}/stream. It registers
// a subscriber with the broadcast hub, forwards every published event as an
// SSE frame in publish order, and emits a keepalive frame whenever the
// stream has been idle for one keepalive interval so intermediaries do not
// drop the connection.
//
// The subscriber is deregistered on every exit path: peer disconnect,
// session drop, and write failure.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.hub.Register(r.Context(), sessionID)
	if errors.Is(err, hub.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer h.hub.Deregister(sessionID, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Configure client retry behavior before the first event.
	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.cfg.Stream.RetryDelay.Milliseconds())); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "session_id", sessionID)
		return
	}
	flusher.Flush()

	slog.Info("event stream connected", "session_id", sessionID)
	defer slog.Info("event stream closed", "session_id", sessionID)

	keepalive := time.NewTicker(h.cfg.Stream.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Session dropped; terminate the stream.
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				slog.Warn("failed to write SSE event", "error", err, "session_id", sessionID)
				return
			}
			flusher.Flush()
			keepalive.Reset(h.cfg.Stream.KeepaliveInterval)
		case <-keepalive.C:
			if _, err := io.WriteString(w, "event: keepalive\n\n"); err != nil {
				slog.Warn("failed to write SSE keepalive", "error", err, "session_id", sessionID)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent serializes one hub event as an SSE frame.
func writeSSEEvent(w io.Writer, ev hub.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
