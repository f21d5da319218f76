package delegate

import "sync/atomic"

// Clock is a monotonic logical clock for ordering coordinator writes.
//
// Every persisted write is stamped with a strictly increasing seq from this
// clock, and failed writes do not consume one, so persisted seqs are dense.
// Wall-clock time is never used for ordering.
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
// Used when a coordinator restarts on top of an existing commit log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Advance moves the clock to seq if it still reads seq-1, and reports
// whether it moved. Lets a writer stamp seq before knowing the write landed.
func (c *Clock) Advance(seq int64) bool {
	return c.seq.CompareAndSwap(seq-1, seq)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
