// Package hub implements the per-session event broadcast hub.
//
// A single background producer publishes an ordered sequence of events for a
// session; any number of stream connections subscribe and observe that
// sequence in publish order. Delivery queues are bounded: when a subscriber's
// queue is full the new event is dropped for that subscriber rather than
// blocking the publisher.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prepstack/interviewd/internal/metrics"
)

// ErrSessionNotFound is returned by Register for unknown or closed sessions.
var ErrSessionNotFound = errors.New("session not found")

// Event kinds carried on subscriber queues and the wire.
const (
	KindAssistantDelta    = "assistant.delta"
	KindAssistantComplete = "assistant.complete"
	KindKeepalive         = "keepalive"
)

// Event is an ephemeral broadcast payload. Events are never persisted;
// they exist only as queue entries and wire frames.
type Event struct {
	Kind string
	Data any
}

// DeltaPayload is the data carried by an assistant.delta event.
type DeltaPayload struct {
	Text string `json:"text"`
}

// SessionChecker validates that a session exists and accepts subscribers.
// The store's session registry implements this through a thin adapter.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// Subscriber is one registered delivery queue. It is owned by exactly one
// stream connection for its lifetime; only the hub sends on or closes the
// underlying channel.
type Subscriber struct {
	id uint64
	ch chan Event
}

// Events returns the ordered delivery queue. The channel is closed when the
// subscriber is deregistered or its session is dropped.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// sessionSubs holds the subscriber set for one session. Its mutex is the
// per-session serialization point: publish holds it for the whole fan-out,
// so every subscriber observes publishes in the same relative order, and
// independent sessions never contend.
type sessionSubs struct {
	mu   sync.Mutex
	subs map[uint64]*Subscriber
}

// Hub fans out events to the subscribers of each session.
type Hub struct {
	checker   SessionChecker
	queueSize int

	mu       sync.RWMutex
	sessions map[string]*sessionSubs
	nextID   uint64
}

// New creates a hub. queueSize bounds each subscriber's delivery queue.
func New(checker SessionChecker, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Hub{
		checker:   checker,
		queueSize: queueSize,
		sessions:  make(map[string]*sessionSubs),
	}
}

// Register creates a new empty delivery queue and adds it to the session's
// subscriber set. It fails with ErrSessionNotFound if the session does not
// exist or is closed. Every successful Register must be paired with exactly
// one Deregister.
func (h *Hub) Register(ctx context.Context, sessionID string) (*Subscriber, error) {
	active, err := h.checker.SessionActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrSessionNotFound
	}

	// The map lock is held across the insert so a concurrent DropSession
	// cannot orphan the new subscriber between lookup and add.
	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		ss = &sessionSubs{subs: make(map[uint64]*Subscriber)}
		h.sessions[sessionID] = ss
	}
	h.nextID++
	sub := &Subscriber{id: h.nextID, ch: make(chan Event, h.queueSize)}
	ss.mu.Lock()
	ss.subs[sub.id] = sub
	ss.mu.Unlock()
	h.mu.Unlock()

	metrics.StreamSubscribers.Inc()

	// A close can land between the validity check and the insert. Re-check
	// after the insert: either this sees the close and backs the subscriber
	// out, or the closer's DropSession sees the subscriber and drops it.
	active, err = h.checker.SessionActive(ctx, sessionID)
	if err != nil || !active {
		h.Deregister(sessionID, sub)
		if err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	slog.Debug("subscriber registered", "session_id", sessionID, "subscriber_id", sub.id)
	return sub, nil
}

// Deregister removes the subscriber from the session's set and closes its
// queue. It is idempotent: deregistering an already removed subscriber is a
// no-op.
func (h *Hub) Deregister(sessionID string, sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.RLock()
	ss := h.sessions[sessionID]
	h.mu.RUnlock()
	if ss == nil {
		return
	}

	ss.mu.Lock()
	_, present := ss.subs[sub.id]
	if present {
		delete(ss.subs, sub.id)
		close(sub.ch)
	}
	empty := len(ss.subs) == 0
	ss.mu.Unlock()

	if present {
		metrics.StreamSubscribers.Dec()
		slog.Debug("subscriber deregistered", "session_id", sessionID, "subscriber_id", sub.id)
	}
	if empty {
		h.pruneIfEmpty(sessionID)
	}
}

// pruneIfEmpty removes the session entry once its subscriber set is empty,
// so idle sessions do not accumulate map entries for the process lifetime.
func (h *Hub) pruneIfEmpty(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	ss.mu.Lock()
	empty := len(ss.subs) == 0
	ss.mu.Unlock()
	if empty {
		delete(h.sessions, sessionID)
	}
}

// Publish delivers the event to every subscriber currently registered for
// the session. Publishing to a session with no subscribers is a no-op.
// Publish never blocks and never fails: a subscriber whose queue is full
// has this event dropped for it.
func (h *Hub) Publish(sessionID string, ev Event) {
	h.mu.RLock()
	ss := h.sessions[sessionID]
	h.mu.RUnlock()
	if ss == nil {
		return
	}

	// The session lock is held across the whole fan-out so concurrent
	// publishes cannot interleave differently per subscriber.
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for _, sub := range ss.subs {
		select {
		case sub.ch <- ev:
			metrics.RecordPublish(ev.Kind)
		default:
			metrics.RecordDrop(ev.Kind)
			slog.Warn("event dropped on full subscriber queue",
				"session_id", sessionID,
				"subscriber_id", sub.id,
				"kind", ev.Kind,
			)
		}
	}
}

// DropSession deregisters and closes every subscriber of a session. Used
// when a session is closed so connected streams terminate promptly.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	for id, sub := range ss.subs {
		delete(ss.subs, id)
		close(sub.ch)
		metrics.StreamSubscribers.Dec()
	}
	slog.Info("session subscribers dropped", "session_id", sessionID)
}

// SubscriberCount returns the number of subscribers currently registered
// for the session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	ss := h.sessions[sessionID]
	h.mu.RUnlock()
	if ss == nil {
		return 0
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.subs)
}
