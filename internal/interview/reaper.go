package interview

import (
	"context"
	"log/slog"
	"time"
)

// StartReaper runs a background goroutine that periodically sweeps for
// sessions with no activity for at least ttl, closes them, and drops their
// remaining stream subscribers.
func StartReaper(ctx context.Context, svc *Service, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reapIdleSessions(ctx, svc, ttl)
			case <-ctx.Done():
				slog.Info("session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func reapIdleSessions(ctx context.Context, svc *Service, ttl time.Duration) {
	idle, err := svc.store.IdleSessions(ctx, ttl)
	if err != nil {
		slog.Error("session reaper failed to list idle sessions", "error", err)
		return
	}

	if len(idle) == 0 {
		return
	}

	slog.Info("session reaper found idle sessions", "count", len(idle))

	for _, session := range idle {
		if err := svc.CloseSession(ctx, session.ID); err != nil {
			slog.Error("session reaper failed to close session",
				"error", err,
				"session_id", session.ID)
		}
	}

	slog.Info("session reaper sweep completed", "closed", len(idle))
}
