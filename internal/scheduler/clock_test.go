package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallClockFiresAndForgets(t *testing.T) {
	c := NewWallClock()
	fired := make(chan struct{})

	require.NoError(t, c.Schedule(1, time.Now(), func() { close(fired) }))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("past-due registration never fired")
	}

	assert.Eventually(t, func() bool { return c.Outstanding() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestWallClockCancelIsIdempotent(t *testing.T) {
	c := NewWallClock()

	require.NoError(t, c.Schedule(1, time.Now().Add(time.Hour), func() {
		t.Error("cancelled registration fired")
	}))
	c.Cancel(1)
	c.Cancel(1)
	c.Cancel(99)

	assert.Zero(t, c.Outstanding())
}

func TestWallClockStaleFireKeepsReplacedRegistration(t *testing.T) {
	c := NewWallClock()
	fired := make(chan struct{})

	require.NoError(t, c.Schedule(7, time.Now().Add(20*time.Millisecond), func() { close(fired) }))

	// Hold the lock across the timer's expiry so its callback is parked
	// right before its map cleanup.
	c.mu.Lock()
	time.Sleep(100 * time.Millisecond)

	// Replace the registration while the stale callback is parked.
	repl := time.AfterFunc(time.Hour, func() { t.Error("replacement fired") })
	defer repl.Stop()
	c.timers[7] = repl
	c.mu.Unlock()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("stale timer never fired")
	}

	// The stale fire must not evict the replacement, and Cancel must still
	// be able to reach it.
	c.mu.Lock()
	assert.Same(t, repl, c.timers[7])
	c.mu.Unlock()

	c.Cancel(7)
	assert.Zero(t, c.Outstanding())
}
