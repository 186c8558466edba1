package store

import (
	"context"
	"sync"
	"time"

	"github.com/prepstack/interviewd/internal/domain"
)

// MemoryStore implements Store with process-lifetime in-memory maps.
// All records are cloned on the way in and out so callers can never
// observe a torn or shared record.
type MemoryStore struct {
	mu         sync.RWMutex
	jobs       map[string]*domain.Job
	sessions   map[string]*domain.Session
	messages   map[string][]*domain.Message
	recordings map[string]*domain.Recording
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[string]*domain.Job),
		sessions:   make(map[string]*domain.Session),
		messages:   make(map[string][]*domain.Message),
		recordings: make(map[string]*domain.Recording),
	}
}

// CreateJob inserts a new job record.
func (s *MemoryStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetJob retrieves a snapshot of a job by ID.
func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// CompleteJob transitions a pending job to done with its results.
func (s *MemoryStore) CompleteJob(_ context.Context, jobID, summary string, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Terminal() {
		return nil
	}
	// Replace the whole record so concurrent readers see either the old
	// pending snapshot or the complete done snapshot, never a mix.
	done := job.Clone()
	done.Status = domain.JobDone
	done.Summary = summary
	done.Questions = questions
	done.UpdatedAt = time.Now()
	s.jobs[jobID] = done
	return nil
}

// FailJob transitions a pending job to failed with an error detail.
func (s *MemoryStore) FailJob(_ context.Context, jobID, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Terminal() {
		return nil
	}
	failed := job.Clone()
	failed.Status = domain.JobFailed
	failed.Error = detail
	failed.UpdatedAt = time.Now()
	s.jobs[jobID] = failed
	return nil
}

// CreateSession inserts a new session record.
func (s *MemoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.ID] = &c
	s.messages[session.ID] = nil
	return nil
}

// GetSession retrieves a snapshot of a session by ID.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

// TouchSession updates the session's last-activity timestamp.
func (s *MemoryStore) TouchSession(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	c := *session
	c.LastActiveAt = at
	s.sessions[sessionID] = &c
	return nil
}

// CloseSession transitions a session from active to closed.
func (s *MemoryStore) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Status == domain.SessionClosed {
		return nil
	}
	c := *session
	c.Status = domain.SessionClosed
	s.sessions[sessionID] = &c
	return nil
}

// IdleSessions returns active sessions with no activity for at least ttl.
func (s *MemoryStore) IdleSessions(_ context.Context, ttl time.Duration) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var idle []*domain.Session
	for _, session := range s.sessions {
		if session.Active() && session.IdleFor(ttl, now) {
			c := *session
			idle = append(idle, &c)
		}
	}
	return idle, nil
}

// AppendMessage appends a message to its session's transcript.
func (s *MemoryStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return ErrSessionNotFound
	}
	c := *msg
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], &c)
	return nil
}

// ListMessages returns the session transcript in append order.
func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	msgs := s.messages[sessionID]
	out := make([]*domain.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}

// CreateRecording inserts the record for an issued upload target.
func (s *MemoryStore) CreateRecording(_ context.Context, rec *domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.recordings[rec.ID] = &c
	return nil
}

// Ping verifies the backing storage is reachable.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close releases storage resources.
func (s *MemoryStore) Close() error {
	return nil
}
