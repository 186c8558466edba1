package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prepstack/interviewd/internal/hub"
)

// wsFrame is the JSON shape carried on the WebSocket mirror of the event
// stream; it corresponds one-to-one to an SSE frame.
type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// HandleStreamWS handles GET /api/interviews/{sessionID}/ws, a WebSocket
// mirror of the SSE event stream carrying the same hub events.
func (h *Handler) HandleStreamWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin not allowed")
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

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	// The client never sends data frames; CloseRead surfaces peer
	// disconnect through context cancellation.
	ctx := ws.CloseRead(r.Context())

	slog.Info("WebSocket stream connected", "session_id", sessionID)
	defer slog.Info("WebSocket stream closed", "session_id", sessionID)

	keepalive := time.NewTicker(h.cfg.Stream.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeWSFrame(ctx, ws, wsFrame{Event: ev.Kind, Data: ev.Data}); err != nil {
				slog.Warn("failed to write WebSocket event", "error", err, "session_id", sessionID)
				return
			}
			keepalive.Reset(h.cfg.Stream.KeepaliveInterval)
		case <-keepalive.C:
			if err := writeWSFrame(ctx, ws, wsFrame{Event: hub.KindKeepalive}); err != nil {
				slog.Warn("failed to write WebSocket keepalive", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

func writeWSFrame(ctx context.Context, ws *websocket.Conn, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// checkOrigin accepts any origin in development and only the configured
// frontend origin otherwise.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == h.cfg.FrontendURL {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.FrontendURL)
	return false
}
