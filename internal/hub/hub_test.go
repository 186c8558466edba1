package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker marks a fixed set of sessions as active.
type fakeChecker struct {
	active map[string]bool
}

func (c fakeChecker) SessionActive(_ context.Context, sessionID string) (bool, error) {
	return c.active[sessionID], nil
}

func newTestHub(queueSize int, sessions ...string) *Hub {
	active := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		active[s] = true
	}
	return New(fakeChecker{active: active}, queueSize)
}

func drain(sub *Subscriber) []Event {
	var events []Event
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestRegisterUnknownSession(t *testing.T) {
	t.Parallel()

	h := newTestHub(8, "s1")

	_, err := h.Register(context.Background(), "nope")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, h.SubscriberCount("nope"))
}

// closingChecker reports the session active only on the first lookup, as
// if the session were closed while registration was in flight.
type closingChecker struct {
	mu    sync.Mutex
	calls int
}

func (c *closingChecker) SessionActive(_ context.Context, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.calls == 1, nil
}

func TestRegisterBacksOutWhenSessionClosesMidRegistration(t *testing.T) {
	t.Parallel()

	h := New(&closingChecker{}, 8)

	_, err := h.Register(context.Background(), "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, h.SubscriberCount("s1"))
}

func TestPublishFanOutPreservesOrder(t *testing.T) {
	t.Parallel()

	h := newTestHub(16, "s1")

	a, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)
	b, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, h.SubscriberCount("s1"))

	const n = 10
	for i := 0; i < n; i++ {
		h.Publish("s1", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: fmt.Sprintf("frag-%d", i)}})
	}

	gotA := drain(a)
	gotB := drain(b)
	require.Len(t, gotA, n)
	assert.Equal(t, gotA, gotB)
	for i, ev := range gotA {
		assert.Equal(t, DeltaPayload{Text: fmt.Sprintf("frag-%d", i)}, ev.Data)
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	t.Parallel()

	h := newTestHub(8, "s1")

	early, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	h.Publish("s1", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: "before"}})

	late, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	assert.Len(t, drain(early), 1)
	assert.Empty(t, drain(late))
}

func TestPublishUnknownSessionIsNoOp(t *testing.T) {
	t.Parallel()

	h := newTestHub(8, "s1")
	// Fire-and-forget: nobody listening, nothing owed.
	h.Publish("ghost", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: "x"}})
}

func TestDeregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newTestHub(8, "s1")

	sub, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	h.Deregister("s1", sub)
	h.Deregister("s1", sub)
	h.Deregister("s1", nil)
	assert.Equal(t, 0, h.SubscriberCount("s1"))

	// Publishing after deregister neither errors nor delivers.
	h.Publish("s1", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: "x"}})

	_, open := <-sub.Events()
	assert.False(t, open, "expected subscriber channel to be closed")
}

func TestFullQueueDropsNewestEvent(t *testing.T) {
	t.Parallel()

	h := newTestHub(2, "s1")

	sub, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		h.Publish("s1", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: fmt.Sprintf("frag-%d", i)}})
	}

	got := drain(sub)
	require.Len(t, got, 2)
	// Drop-newest: the earliest events survive, in order.
	assert.Equal(t, DeltaPayload{Text: "frag-0"}, got[0].Data)
	assert.Equal(t, DeltaPayload{Text: "frag-1"}, got[1].Data)
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	h := newTestHub(2, "s1")

	slow, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)
	fast, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.Publish("s1", Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: fmt.Sprintf("frag-%d", i)}})
		// The fast subscriber keeps up.
		<-fast.Events()
	}

	assert.Len(t, drain(slow), 2)
}

func TestDropSessionClosesSubscribers(t *testing.T) {
	t.Parallel()

	h := newTestHub(8, "s1")

	a, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)
	b, err := h.Register(context.Background(), "s1")
	require.NoError(t, err)

	h.DropSession("s1")

	_, open := <-a.Events()
	assert.False(t, open)
	_, open = <-b.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount("s1"))
}

func TestConcurrentRegisterPublishDeregister(t *testing.T) {
	t.Parallel()

	h := newTestHub(4, "s1", "s2")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sessionID := "s1"
			if n%2 == 0 {
				sessionID = "s2"
			}
			for j := 0; j < 100; j++ {
				sub, err := h.Register(context.Background(), sessionID)
				if err != nil {
					t.Errorf("Register failed: %v", err)
					return
				}
				h.Publish(sessionID, Event{Kind: KindAssistantDelta, Data: DeltaPayload{Text: "x"}})
				h.Deregister(sessionID, sub)
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 500; j++ {
			h.Publish("s1", Event{Kind: KindKeepalive})
		}
	}()

	wg.Wait()
}
