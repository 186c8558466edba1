package api

import (
	"sync"
	"time"
)

// RateLimiter throttles message posts per session with a sliding window,
// so a single noisy session cannot monopolize the reply producer.
type RateLimiter struct {
	mu     sync.Mutex
	posts  map[string][]time.Time
	limit  int
	window time.Duration
	done   chan struct{}
}

// NewRateLimiter creates a limiter allowing limit posts per window for each
// key. Call Stop when the limiter is no longer needed.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		posts:  make(map[string][]time.Time),
		limit:  limit,
		window: window,
		done:   make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow records one post for key and reports whether it fits the window.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(r.posts[key], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.posts[key] = recent
		return false
	}
	r.posts[key] = append(recent, now)
	return true
}

// Stop terminates the background eviction. The limiter remains usable but
// stale keys are then only pruned on their next Allow call.
func (r *RateLimiter) Stop() {
	close(r.done)
}

// evictLoop drops keys whose window has fully expired, bounding the map for
// sessions that stopped posting.
func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evict()
		}
	}
}

func (r *RateLimiter) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for key, times := range r.posts {
		fresh := pruneBefore(times, cutoff)
		if len(fresh) == 0 {
			delete(r.posts, key)
			continue
		}
		r.posts[key] = fresh
	}
}

// pruneBefore drops timestamps at or before cutoff. Entries are appended in
// order, so the first fresh index bounds the kept suffix.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return nil
}
