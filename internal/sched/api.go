package sched

import (
	"log/slog"
	"math"
	"runtime"
)

// Task is the handle a task body uses to talk to the scheduler. Its methods
// must only be called from the task's own goroutine; they are the task's
// suspension points.
type Task struct {
	s   *Scheduler
	tcb *TCB
	log *slog.Logger
}

func (t *Task) ID() TaskID { return t.tcb.ID }

func (t *Task) Name() string { return t.tcb.Name }

func (t *Task) Priority() int { return t.tcb.Priority }

// Now is the current tick.
func (t *Task) Now() uint64 { return t.s.tick.Now() }

// Logger carries the task's name and ID.
func (t *Task) Logger() *slog.Logger { return t.log }

// Stack is the task's stack region. Index 0 is the lowest address; the
// first guard_bytes bytes are the overflow guard and must not be written.
func (t *Task) Stack() []byte {
	if t.tcb.Stack == nil {
		return nil
	}
	return t.tcb.Stack.Mem
}

// Burn executes for ticks timer interrupts, taking each one and letting a
// higher priority task preempt at every tick boundary.
func (t *Task) Burn(ticks int) {
	s := t.s
	for i := 0; i < ticks; i++ {
		if !s.timer.Wait() {
			runtime.Goexit()
		}
		s.lockFor(t.tcb)
		s.advanceLocked()
		s.scheduleLocked(t.tcb)
	}
}

// Checkpoint takes any timer interrupts raised since the last scheduler call
// and performs the yield check they imply.
func (t *Task) Checkpoint() {
	s := t.s
	s.lockFor(t.tcb)
	for s.timer.Poll() {
		s.advanceLocked()
	}
	s.scheduleLocked(t.tcb)
}

// Yield moves the task to the tail of its priority level and runs the
// highest Ready task, which may be the caller again.
func (t *Task) Yield() {
	s := t.s
	s.lockFor(t.tcb)
	for s.timer.Poll() {
		s.advanceLocked()
	}
	if t.tcb != s.idle {
		s.record(StatusYield, t.tcb)
	}
	s.makeReadyLocked(t.tcb)
	s.scheduleLocked(t.tcb)
}

// SleepFor suspends the task for at least ticks ticks. SleepFor(0) yields.
// A delay past the end of the tick range sleeps until math.MaxUint64.
func (t *Task) SleepFor(ticks uint64) {
	if ticks == 0 {
		t.Yield()
		return
	}
	now := t.Now()
	wake := uint64(math.MaxUint64)
	if ticks <= math.MaxUint64-now {
		wake = now + ticks
	}
	t.SleepUntil(wake)
}

// SleepUntil suspends the task until the given tick. A tick that has already
// passed makes it a yield.
func (t *Task) SleepUntil(wake uint64) {
	s := t.s
	s.lockFor(t.tcb)
	if wake <= s.tick.Now() {
		s.makeReadyLocked(t.tcb)
		s.scheduleLocked(t.tcb)
		return
	}
	if err := s.wheel.SleepUntil(t.tcb, wake); err != nil {
		s.fatalLocked(t.tcb, err)
	}
	s.record(StatusSleep, t.tcb)
	s.scheduleLocked(t.tcb)
}

// Wait blocks until the task has been notified at least once and returns
// the number of notifications consumed.
func (t *Task) Wait() uint32 {
	s := t.s
	s.lockFor(t.tcb)
	if t.tcb.notified == 0 {
		t.tcb.State = Blocked
		s.record(StatusBlock, t.tcb)
		s.scheduleLocked(t.tcb)
		s.lockFor(t.tcb)
	}
	n := t.tcb.notified
	t.tcb.notified = 0
	s.mu.Unlock()
	return n
}

// Exit terminates the task. It does not return.
func (t *Task) Exit() {
	s := t.s
	s.lockFor(t.tcb)
	s.exitLocked(t.tcb)
}

// Spawn creates a task. It does not give up the CPU; a higher priority
// child takes over at the next tick.
func (t *Task) Spawn(name string, entry EntryFunc, priority, stackSize int) (TaskID, error) {
	s := t.s
	s.lockFor(t.tcb)
	defer s.mu.Unlock()
	return s.spawnLocked(name, entry, priority, stackSize)
}

// Terminate ends another task, or the caller itself (which does not return).
func (t *Task) Terminate(id TaskID) error {
	if id == t.tcb.ID {
		t.Exit()
	}
	s := t.s
	s.lockFor(t.tcb)
	defer s.mu.Unlock()
	return s.terminateLocked(id)
}

// Notify gives another task one notification.
func (t *Task) Notify(id TaskID) error {
	s := t.s
	s.lockFor(t.tcb)
	defer s.mu.Unlock()
	return s.notifyLocked(id)
}
