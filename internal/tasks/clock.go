package tasks

import "sync/atomic"

// Sequencer hands out strictly increasing logical timestamps.
type Sequencer interface {
	Next() int64
}

// Clock is the scheduler's monotonic logical clock.
//
// Steps and pipelines are stamped with seq values from this clock, never
// wall time, so a journal written by one run orders identically on replay.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
