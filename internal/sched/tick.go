package sched

import "sync/atomic"

// TickSource turns timer interrupts into a monotonically increasing logical
// tick counter.
type TickSource struct {
	count atomic.Uint64
	wheel *TimerWheel
}

func NewTickSource(w *TimerWheel) *TickSource {
	return &TickSource{wheel: w}
}

// Advance is the timer interrupt handler. It must be called exactly once per
// interrupt, with the scheduler lock held, and is never re-entered. It does
// not block. The returned slice is only valid until the next call.
func (ts *TickSource) Advance() (uint64, []*TCB) {
	tick := ts.count.Add(1)
	return tick, ts.wheel.Expire(tick)
}

// Now is safe to call from any goroutine.
func (ts *TickSource) Now() uint64 {
	return ts.count.Load()
}
