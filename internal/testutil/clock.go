package testutil

import (
	"sync"
	"time"
)

// BaseTime is the first instant handed out by a DeterministicClock.
var BaseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe fake wall clock for tests.
//
// Every call to Now advances the clock by one millisecond, so events created
// in sequence get distinct, predictable timestamps and therefore predictable ids.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	seq  int64
}

// NewDeterministicClock creates a clock starting at BaseTime.
//
// The first call to Now() returns BaseTime + 1ms.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(BaseTime)
}

// NewDeterministicClockAt creates a clock starting at base.
func NewDeterministicClockAt(base time.Time) *DeterministicClock {
	return &DeterministicClock{base: base}
}

// Now advances the clock and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.base.Add(time.Duration(c.seq) * time.Millisecond)
}

// NextMillis advances the clock and returns Unix milliseconds.
func (c *DeterministicClock) NextMillis() int64 {
	return c.Now().UnixMilli()
}

// Current returns the number of ticks handed out so far.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the same scenario can run again with identical timestamps.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
