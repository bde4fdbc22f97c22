package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock used to order steps and timers.
//
// Every step is stamped with Clock.Next(), and every timer records the seq
// at which it was scheduled so that timers due at the same instant fire in
// scheduling order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies the engine's notion of now.
type TimeSource interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns time.Now() in UTC. Journaled times parse back as UTC, so a
// local offset here would change every snapshot hash on replay.
func (WallClock) Now() time.Time {
	return time.Now().UTC()
}

// VirtualClock is a manually advanced TimeSource.
//
// It never moves backwards: Set with an earlier time is ignored.
//
// Thread-safety: all methods are safe for concurrent use.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualClock creates a clock reading start, normalised to UTC.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start.UTC()}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t if t is not before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t.UTC()
	}
}

// Advance moves the clock forward by d and returns the new time.
func (c *VirtualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}
