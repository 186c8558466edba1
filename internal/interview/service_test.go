package interview

import (
	"context"
	"iter"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/interviewd/internal/domain"
	"github.com/prepstack/interviewd/internal/generate"
	"github.com/prepstack/interviewd/internal/hub"
	"github.com/prepstack/interviewd/internal/store"
)

// echoGen streams a fixed prefix plus the user text split into two
// fragments, with no pacing delay.
type echoGen struct{}

func (echoGen) GenerateJob(_ context.Context, req generate.JobRequest) (*generate.JobResult, error) {
	return &generate.JobResult{Summary: "summary for " + req.CompanyURL}, nil
}

func (echoGen) Reply(_ context.Context, req generate.ReplyRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("echo: ", nil) {
			return
		}
		yield(req.UserText, nil)
	}
}

func newTestService(t *testing.T) (*Service, *hub.Hub, store.Store) {
	t.Helper()
	st := store.NewMemory()
	h := hub.New(StoreChecker{Store: st}, 32)
	svc := NewService(st, h, echoGen{}, time.Second)
	return svc, h, st
}

// collectReply reads events from a subscriber until assistant.complete
// arrives, returning the delta texts and the completed message.
func collectReply(t *testing.T, sub *hub.Subscriber) ([]string, *domain.Message) {
	t.Helper()
	var deltas []string
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscriber channel closed before completion")
			switch ev.Kind {
			case hub.KindAssistantDelta:
				payload, ok := ev.Data.(hub.DeltaPayload)
				require.True(t, ok)
				deltas = append(deltas, payload.Text)
			case hub.KindAssistantComplete:
				msg, ok := ev.Data.(*domain.Message)
				require.True(t, ok)
				return deltas, msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for assistant.complete")
		}
	}
}

func TestPostMessageStreamsReply(t *testing.T) {
	t.Parallel()

	svc, h, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	sub, err := h.Register(ctx, session.ID)
	require.NoError(t, err)
	defer h.Deregister(session.ID, sub)

	userMsg, err := svc.PostMessage(ctx, session.ID, "how does scaling work here?", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, userMsg.Role)

	deltas, complete := collectReply(t, sub)
	// The deltas concatenate to exactly the completed message text.
	assert.Equal(t, complete.Text, strings.Join(deltas, ""))
	assert.Equal(t, "echo: how does scaling work here?", complete.Text)
	assert.Equal(t, domain.RoleAssistant, complete.Role)

	// A client that saw completion always finds the message on fetch.
	msgs, err := svc.Messages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, complete.ID, msgs[1].ID)
	assert.Equal(t, complete.Text, msgs[1].Text)
}

func TestTwoSubscribersSeeSameSequence(t *testing.T) {
	t.Parallel()

	svc, h, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	a, err := h.Register(ctx, session.ID)
	require.NoError(t, err)
	defer h.Deregister(session.ID, a)
	b, err := h.Register(ctx, session.ID)
	require.NoError(t, err)
	defer h.Deregister(session.ID, b)

	_, err = svc.PostMessage(ctx, session.ID, "hello", "")
	require.NoError(t, err)

	deltasA, completeA := collectReply(t, a)
	deltasB, completeB := collectReply(t, b)
	assert.Equal(t, deltasA, deltasB)
	assert.Equal(t, completeA.ID, completeB.ID)
}

func TestDisconnectMidReplyStillAppendsTranscript(t *testing.T) {
	t.Parallel()

	svc, h, st := newTestService(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	sub, err := h.Register(ctx, session.ID)
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, session.ID, "hello", "")
	require.NoError(t, err)

	// Drop the only subscriber immediately; the reply producer must finish
	// regardless and persist the assistant message.
	h.Deregister(session.ID, sub)

	require.Eventually(t, func() bool {
		msgs, err := st.ListMessages(ctx, session.ID)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 5*time.Millisecond)

	msgs, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "echo: hello", msgs[1].Text)
}

func TestPostMessageRejections(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, "missing", "hello", "")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(ctx, session.ID))

	_, err = svc.PostMessage(ctx, session.ID, "hello", "")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestCloseSessionDropsSubscribers(t *testing.T) {
	t.Parallel()

	svc, h, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	sub, err := h.Register(ctx, session.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(ctx, session.ID))

	select {
	case _, open := <-sub.Events():
		assert.False(t, open, "expected subscriber channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after session close")
	}

	// A closed session no longer accepts subscribers.
	_, err = h.Register(ctx, session.ID)
	assert.ErrorIs(t, err, hub.ErrSessionNotFound)
}

// laggyGen ignores cancellation and yields its reply after a fixed delay,
// so a short reply timeout expires while production is still in flight.
type laggyGen struct {
	delay time.Duration
}

func (g laggyGen) GenerateJob(_ context.Context, _ generate.JobRequest) (*generate.JobResult, error) {
	return &generate.JobResult{}, nil
}

func (g laggyGen) Reply(_ context.Context, _ generate.ReplyRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		time.Sleep(g.delay)
		yield("late reply", nil)
	}
}

func TestReplyPersistsPastProductionDeadline(t *testing.T) {
	t.Parallel()

	// The SQLite store honors context deadlines, so the transcript append
	// must not run under the expired reply-production context.
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "interviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	h := hub.New(StoreChecker{Store: st}, 32)
	svc := NewService(st, h, laggyGen{delay: 50 * time.Millisecond}, 10*time.Millisecond)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, session.ID, "hello", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs, err := st.ListMessages(ctx, session.ID)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 5*time.Millisecond)

	msgs, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "late reply", msgs[1].Text)
}

func TestReapIdleSessions(t *testing.T) {
	t.Parallel()

	svc, h, st := newTestService(t)
	ctx := context.Background()

	stale, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)
	require.NoError(t, st.TouchSession(ctx, stale.ID, time.Now().Add(-time.Hour)))

	fresh, err := svc.OpenSession(ctx, "job-1")
	require.NoError(t, err)

	sub, err := h.Register(ctx, stale.ID)
	require.NoError(t, err)

	reapIdleSessions(ctx, svc, 30*time.Minute)

	got, err := svc.Session(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionClosed, got.Status)

	got, err = svc.Session(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)

	_, open := <-sub.Events()
	assert.False(t, open, "expected reaped session's subscriber to be dropped")
}
