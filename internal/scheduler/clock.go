package scheduler

import (
	"sync"
	"time"
)

// AlarmClock delivers callbacks at absolute timestamps. Registrations are
// keyed by an opaque token; cancelling a token that is unknown, already
// fired, or already cancelled is a silent no-op.
type AlarmClock interface {
	Now() time.Time
	// Schedule registers fn to run at the given time. Registering the
	// same token again replaces the previous registration.
	Schedule(token int64, at time.Time, fn func()) error
	Cancel(token int64)
}

// WallClock is the production AlarmClock backed by the runtime timer wheel.
type WallClock struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewWallClock creates a WallClock with no registrations.
func NewWallClock() *WallClock {
	return &WallClock{timers: make(map[int64]*time.Timer)}
}

func (c *WallClock) Now() time.Time {
	return time.Now()
}

func (c *WallClock) Schedule(token int64, at time.Time, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[token]; ok {
		t.Stop()
	}

	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	// The callback only removes its own registration: if the token was
	// re-registered between expiry and the callback taking the lock, the
	// newer timer's entry must survive so Cancel can still reach it.
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.timers[token] == t {
			delete(c.timers, token)
		}
		c.mu.Unlock()
		fn()
	})
	c.timers[token] = t

	return nil
}

func (c *WallClock) Cancel(token int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[token]; ok {
		t.Stop()
		delete(c.timers, token)
	}
}

// Outstanding reports the number of live registrations.
func (c *WallClock) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
