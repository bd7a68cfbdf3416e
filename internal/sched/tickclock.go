// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the hardware timer as seen by the running task. Interrupts are
// only ever taken by the task that currently owns the CPU.
type Timer interface {
	// Wait blocks until the next timer interrupt. It returns false once the
	// timer has been stopped.
	Wait() bool
	// Poll consumes one pending interrupt without blocking.
	Poll() bool
	// Stop releases any waiter. Safe to call more than once.
	Stop()
}

// TickClock emits ticks at a fixed rate and counts them atomically.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	overruns atomic.Int64
	stop     chan struct{}
	once     sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. A tick that finds the
// interrupt line full is counted as an overrun and dropped.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
					c.overruns.Add(1)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Wait implements Timer. Once stopped it never reports another interrupt,
// even if some are still buffered.
func (c *TickClock) Wait() bool {
	select {
	case <-c.stop:
		return false
	default:
	}
	select {
	case <-c.stop:
		return false
	case <-c.Ch:
		return true
	}
}

// Poll implements Timer.
func (c *TickClock) Poll() bool {
	select {
	case <-c.stop:
		return false
	default:
	}
	select {
	case <-c.Ch:
		return true
	default:
		return false
	}
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the number of ticks emitted so far.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Overruns returns the number of ticks dropped because nobody took them.
func (c *TickClock) Overruns() int64 {
	return c.overruns.Load()
}

// StepTimer is a simulated timer: every Wait is an immediate interrupt, so
// virtual time advances exactly as fast as tasks burn it.
type StepTimer struct {
	stopped atomic.Bool
}

func NewStepTimer() *StepTimer { return &StepTimer{} }

func (t *StepTimer) Wait() bool { return !t.stopped.Load() }

// Poll never reports an interrupt; time only passes inside Wait.
func (t *StepTimer) Poll() bool { return false }

func (t *StepTimer) Stop() { t.stopped.Store(true) }
