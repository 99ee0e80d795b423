package core

import (
	"sync"
	"time"
)

// Clock is the time source of the control loop
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock only moves when told to. Sleep advances it, so busy-waits
// complete instantly in tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock starting at a fixed instant
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, 10, 26, 1, 21, 0, 0, time.UTC)}
}

// Now returns the current manual time
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d
func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
