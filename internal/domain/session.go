package domain

import (
	"time"
)

// SessionStatus tracks whether an interview session still accepts activity.
type SessionStatus string

const (
	// SessionActive means the session accepts messages and subscribers.
	SessionActive SessionStatus = "active"
	// SessionClosed means the session has been closed; it is retained
	// for transcript reads but rejects new streams and messages.
	SessionClosed SessionStatus = "closed"
)

// Session is a conversation context grouping an ordered message
// transcript and its live stream subscribers.
type Session struct {
	ID           string        `json:"id"`
	JobID        string        `json:"jobId"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
}

// Active reports whether the session still accepts messages and subscribers.
func (s *Session) Active() bool {
	return s.Status == SessionActive
}

// IdleFor reports whether the session has seen no activity for at least ttl.
func (s *Session) IdleFor(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastActiveAt) >= ttl
}
