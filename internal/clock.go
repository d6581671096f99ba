package internal

import (
	"sync"
	"time"
)

// Clock is a monotonic time source measured from an arbitrary anchor.
type Clock interface {
	Now() time.Duration
}

type SystemClock struct {
	// holds the monotonic reading, time.Since never goes backwards
	anchor time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{anchor: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.anchor)
}

// ManualClock only moves when told to. Used to drive the engine deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t > c.now {
		c.now = t
	}
}

func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d > 0 {
		c.now += d
	}
	return c.now
}
