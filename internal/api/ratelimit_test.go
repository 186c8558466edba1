package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("s1"), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow("s1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))
	assert.True(t, rl.Allow("s2"))
}

func TestRateLimiterWindowExpires(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()

	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("s1"))
}

func TestRateLimiterStop(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 10*time.Millisecond)
	rl.Stop()

	// Allow still works after Stop; pruning happens inline.
	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow("s1"))
}
