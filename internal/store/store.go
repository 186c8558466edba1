// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/prepstack/interviewd/internal/domain"
)

var (
	// ErrJobNotFound is returned when a job ID is unknown.
	ErrJobNotFound = errors.New("job not found")
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
)

// Store defines the interface for persisting jobs, sessions, transcripts
// and recordings. Implementations must guarantee that readers never
// observe a partially-updated record: updates replace whole records.
type Store interface {
	// CreateJob inserts a new job record.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a snapshot of a job by ID.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// CompleteJob transitions a pending job to done with its results.
	// A job that already reached a terminal status is left untouched.
	CompleteJob(ctx context.Context, jobID, summary string, questions []domain.Question) error

	// FailJob transitions a pending job to failed with an error detail.
	// A job that already reached a terminal status is left untouched.
	FailJob(ctx context.Context, jobID, detail string) error

	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a snapshot of a session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// TouchSession updates the session's last-activity timestamp.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// CloseSession transitions a session from active to closed.
	// Closing an already closed session is a no-op.
	CloseSession(ctx context.Context, sessionID string) error

	// IdleSessions returns active sessions with no activity for at least ttl.
	IdleSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error)

	// AppendMessage appends a message to its session's transcript.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns the session transcript in append order.
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// CreateRecording inserts the record for an issued upload target.
	CreateRecording(ctx context.Context, rec *domain.Recording) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
