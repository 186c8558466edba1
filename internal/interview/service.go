// Package interview manages interview sessions, their transcripts, and the
// background reply producer that streams assistant output to subscribers.
package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/interviewd/internal/domain"
	"github.com/prepstack/interviewd/internal/generate"
	"github.com/prepstack/interviewd/internal/hub"
	"github.com/prepstack/interviewd/internal/store"
)

// ErrSessionClosed is returned when posting to a closed session.
var ErrSessionClosed = errors.New("session closed")

// StoreChecker adapts the store's session registry to hub.SessionChecker.
type StoreChecker struct {
	Store store.Store
}

// SessionActive reports whether the session exists and is active.
func (c StoreChecker) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	session, err := c.Store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.Active(), nil
}

// Service is the session registry and reply producer.
type Service struct {
	store        store.Store
	hub          *hub.Hub
	gen          generate.Generator
	replyTimeout time.Duration
}

// NewService creates the interview service. replyTimeout bounds one
// background reply production run.
func NewService(st store.Store, h *hub.Hub, gen generate.Generator, replyTimeout time.Duration) *Service {
	if replyTimeout <= 0 {
		replyTimeout = 2 * time.Minute
	}
	return &Service{store: st, hub: h, gen: gen, replyTimeout: replyTimeout}
}

// OpenSession creates a new active session referencing a job.
func (s *Service) OpenSession(ctx context.Context, jobID string) (*domain.Session, error) {
	now := time.Now()
	session := &domain.Session{
		ID:           uuid.NewString(),
		JobID:        jobID,
		Status:       domain.SessionActive,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("session opened", "session_id", session.ID, "job_id", jobID)
	return session, nil
}

// Session returns a snapshot of the session record.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// Messages returns the session transcript in append order.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// PostMessage appends a user message to the transcript and schedules the
// background reply producer. It returns once the user message is stored;
// the reply arrives on the session's event stream.
func (s *Service) PostMessage(ctx context.Context, sessionID, text, audioStoragePath string) (*domain.Message, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, ErrSessionClosed
	}

	msg := &domain.Message{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Role:             domain.RoleUser,
		Text:             text,
		AudioStoragePath: audioStoragePath,
		CreatedAt:        time.Now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.store.TouchSession(ctx, sessionID, msg.CreatedAt); err != nil {
		slog.Warn("failed to touch session", "session_id", sessionID, "error", err)
	}

	go s.respond(sessionID, text)

	return msg, nil
}

// respond produces one assistant reply: it streams each fragment as an
// assistant.delta, appends the final message to the transcript, and only
// then publishes assistant.complete, so a client that sees completion and
// fetches the transcript always finds the message.
//
// The run is detached from the posting request; subscriber disconnects
// never abort it.
func (s *Service) respond(sessionID, userText string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.replyTimeout)
	defer cancel()

	var full strings.Builder
	for frag, err := range s.gen.Reply(ctx, generate.ReplyRequest{SessionID: sessionID, UserText: userText}) {
		if err != nil {
			// No record exists to carry a reply failure; the transcript
			// keeps no partial assistant message and no terminal event
			// is published.
			slog.Error("reply generation failed", "session_id", sessionID, "error", err)
			return
		}
		full.WriteString(frag)
		s.hub.Publish(sessionID, hub.Event{
			Kind: hub.KindAssistantDelta,
			Data: hub.DeltaPayload{Text: frag},
		})
	}

	// Persisting the reply must survive the production deadline; the
	// fragments were already streamed, so the transcript has to match.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer recordCancel()

	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Text:      full.String(),
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendMessage(recordCtx, msg); err != nil {
		slog.Error("failed to append assistant message", "session_id", sessionID, "error", err)
		return
	}
	if err := s.store.TouchSession(recordCtx, sessionID, msg.CreatedAt); err != nil {
		slog.Warn("failed to touch session", "session_id", sessionID, "error", err)
	}

	s.hub.Publish(sessionID, hub.Event{Kind: hub.KindAssistantComplete, Data: msg})
	slog.Info("reply completed", "session_id", sessionID, "message_id", msg.ID, "length", full.Len())
}

// CloseSession transitions a session to closed and drops its subscribers.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	if err := s.store.CloseSession(ctx, sessionID); err != nil {
		return err
	}
	s.hub.DropSession(sessionID)
	slog.Info("session closed", "session_id", sessionID)
	return nil
}
