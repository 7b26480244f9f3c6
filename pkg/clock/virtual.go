package clock

import (
	"sync"
	"time"
)

// VirtualClock provides deterministic time control for tests. Time only
// moves when Advance is called; AfterFunc callbacks whose deadline has
// passed fire synchronously from within Advance's goroutine dispatch.
type VirtualClock struct {
	mu          sync.Mutex
	current     time.Time
	timers      []*virtualTimer
	nextTimerID int
}

// NewVirtualClock creates a clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves simulated time forward by d, firing any timer whose
// deadline has been reached or passed. Returns the number of timers fired.
func (c *VirtualClock) Advance(d time.Duration) int {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current

	var fired []*virtualTimer
	remaining := make([]*virtualTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.deadline.After(now) {
			fired = append(fired, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range fired {
		t.fire()
	}
	return len(fired)
}

func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &virtualTimer{
		id:       c.nextTimerID,
		deadline: c.current.Add(d),
		callback: f,
		clock:    c,
	}
	c.nextTimerID++
	c.timers = append(c.timers, t)
	return t
}

// PendingTimers returns the number of timers not yet fired or cancelled.
func (c *VirtualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type virtualTimer struct {
	id       int
	deadline time.Time
	callback func()
	clock    *VirtualClock
	mu       sync.Mutex
	fired    bool
}

func (t *virtualTimer) fire() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	cb := t.callback
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (t *virtualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired {
		return false
	}

	t.clock.mu.Lock()
	remaining := make([]*virtualTimer, 0, len(t.clock.timers))
	for _, other := range t.clock.timers {
		if other.id != t.id {
			remaining = append(remaining, other)
		}
	}
	t.clock.timers = remaining
	t.clock.mu.Unlock()

	t.fired = true
	return true
}
