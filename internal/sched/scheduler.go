// internal/sched/scheduler.go

package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Scheduler is a preemptive priority scheduler for a single execution unit.
// Exactly one task goroutine runs at a time; every other task goroutine is
// parked on its saved Context.
type Scheduler struct {
	// mu is the critical section: the ready queue, timer wheel, registry and
	// running slot are only touched while holding it.
	mu      sync.Mutex
	cfg     Config
	log     *slog.Logger
	tick    *TickSource
	ready   *ReadyQueue
	wheel   *TimerWheel
	reg     *Registry
	current *TCB // running slot
	idle    *TCB

	timer      Timer
	startTimer func()
	sink       Sink
	halter     Halter
	recorders  []Recorder

	// event stream
	statusCh chan StatusEvent
	backlog  []StatusEvent // events emitted before Run

	done    chan struct{}
	halting sync.WaitGroup
	started bool
	stopped bool
	err     error
	bootID  xid.ID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithTimer replaces the real-time tick clock, e.g. with a StepTimer.
func WithTimer(t Timer) Option { return func(s *Scheduler) { s.timer = t } }

func WithSink(sink Sink) Option { return func(s *Scheduler) { s.sink = sink } }

func WithHalter(h Halter) Option { return func(s *Scheduler) { s.halter = h } }

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorders = append(s.recorders, r) }
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	cfg = cfg.sanitized()
	s := &Scheduler{
		cfg:      cfg,
		log:      slog.Default(),
		halter:   exitHalter{},
		statusCh: make(chan StatusEvent, cfg.EventBuffer),
		done:     make(chan struct{}),
		bootID:   xid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "scheduler")
	if s.sink == nil {
		s.sink = NewLogSink(s.log)
	}
	if s.timer == nil {
		clock := NewTickClock(256) // buffer size for pending tick interrupts
		s.timer = clock
		s.startTimer = func() { clock.Start(cfg.TickInterval()) }
	}

	s.reg = NewRegistry(NewArena(cfg.ArenaBytes), cfg)
	s.ready = NewReadyQueue(cfg.PriorityLevels, cfg.MaxTasks+1)
	s.wheel = NewTimerWheel(s.reg, s.ready)
	s.tick = NewTickSource(s.wheel)

	idle, err := s.reg.spawnIdle(idleLoop, cfg.IdleStackBytes)
	if err != nil {
		return nil, fmt.Errorf("reserve idle stack: %w", err)
	}
	idle.ctx = newContext(func() { s.host(idle) })
	s.idle = idle

	s.log.Debug("scheduler initialised",
		"boot_id", s.bootID.String(),
		"priority_levels", cfg.PriorityLevels,
		"arena_bytes", s.reg.Arena().Size(),
		"tick", cfg.TickInterval())
	return s, nil
}

// idleLoop waits for one interrupt at a time and yields after each, so the
// scheduler is re-entered on every tick even when nothing else is runnable.
func idleLoop(t *Task) {
	for {
		t.Burn(1)
		t.Yield()
	}
}

// Run boots the scheduler and streams status events to the recorders until
// it stops: after StopAfterTicks (nil), on ctx cancellation (ctx.Err()) or on
// a fatal halt (the fatal error).
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.started = true

	consumed := make(chan struct{})
	go s.consume(consumed)
	for _, ev := range s.backlog {
		s.statusCh <- ev
	}
	s.backlog = nil

	if s.startTimer != nil {
		s.startTimer()
	}
	next := s.pickLocked(nil)
	next.State = Running
	next.dispatchedAt = s.tick.Now()
	s.current = next
	s.record(s.dispatchKind(next), next)
	next.ctx.Restore()
	s.mu.Unlock()

	s.log.Info("scheduler started", "boot_id", s.bootID.String(), "first_task", next.Name)

	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.err == nil {
				s.err = ctx.Err()
			}
			s.shutdownLocked()
			s.mu.Unlock()
		case <-s.done:
		}
	}()

	<-consumed
	s.halting.Wait()

	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	s.log.Info("scheduler stopped", "tick", s.tick.Now(), "live_tasks", s.Live(), "err", err)
	return err
}

// consume feeds every event to the recorders and closes them at the end.
func (s *Scheduler) consume(done chan<- struct{}) {
	defer close(done)
	for ev := range s.statusCh {
		for _, r := range s.recorders {
			r.Record(ev)
		}
	}

	var errs []error
	for _, r := range s.recorders {
		errs = append(errs, r.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("closing recorders", "err", err)
	}
}

// Spawn creates a task and makes it Ready. A task spawned at a higher
// priority than the running one takes over at the next tick.
func (s *Scheduler) Spawn(name string, entry EntryFunc, priority, stackSize int) (TaskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(name, entry, priority, stackSize)
}

func (s *Scheduler) spawnLocked(name string, entry EntryFunc, priority, stackSize int) (TaskID, error) {
	if s.stopped {
		return 0, ErrStopped
	}

	t, err := s.reg.Spawn(name, entry, priority, stackSize)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			s.sink.Emit(Diagnostic{
				Severity: SeverityError,
				Message:  err.Error(),
				Tick:     s.tick.Now(),
			})
		}
		return 0, err
	}
	t.ctx = newContext(func() { s.host(t) })

	if err := s.ready.Enqueue(t.ID, t.Priority); err != nil {
		s.reg.Terminate(t.ID)
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	s.record(StatusEnqueue, t)
	s.log.Debug("task spawned", "task", name, "task_id", uint64(t.ID),
		"priority", t.Priority, "stack_bytes", t.Stack.Size())
	return t.ID, nil
}

// Terminate ends a task from outside. A Ready or Sleeping task is dequeued
// and its stack reclaimed at once. A task that is Running is detached: it
// leaves the task table immediately, but the reschedule is deferred until
// its next scheduler call, where it reclaims its stack and gives up the CPU.
// Until then the running slot still holds it.
func (s *Scheduler) Terminate(id TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminateLocked(id)
}

func (s *Scheduler) terminateLocked(id TaskID) error {
	if id == IdleTaskID {
		return fmt.Errorf("terminate idle task: %w", ErrInvalidHandle)
	}
	t, err := s.reg.Lookup(id)
	if err != nil {
		return err
	}

	switch t.State {
	case Ready:
		s.ready.Remove(t.ID, t.Priority)
	case Sleeping:
		s.wheel.Cancel(t.ID)
	case Running:
		if _, err := s.reg.Detach(id); err != nil {
			return err
		}
		s.record(StatusFinish, t)
		return nil
	}

	if _, err := s.reg.Terminate(id); err != nil {
		return err
	}
	s.record(StatusFinish, t)
	t.ctx.kill()
	return nil
}

// Notify gives id one notification, unblocking it if it waits for one.
func (s *Scheduler) Notify(id TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyLocked(id)
}

func (s *Scheduler) notifyLocked(id TaskID) error {
	t, err := s.reg.Lookup(id)
	if err != nil || t == s.idle {
		return fmt.Errorf("notify task %d: %w", id, ErrInvalidHandle)
	}
	t.notified++
	if t.State == Blocked {
		t.State = Ready
		if err := s.ready.Enqueue(t.ID, t.Priority); err != nil {
			return err
		}
		s.record(StatusWake, t)
	}
	return nil
}

// SleepUntil puts a Ready or Sleeping task to sleep until wake. The running
// task can only put itself to sleep, through its Task handle.
func (s *Scheduler) SleepUntil(id TaskID, wake uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.reg.Lookup(id)
	if err != nil {
		return err
	}
	if t.State == Running || t == s.idle {
		return fmt.Errorf("sleep task %d: %w: %s", id, ErrInvalidTaskState, t.State)
	}
	if err := s.wheel.SleepUntil(t, wake); err != nil {
		return err
	}
	s.record(StatusSleep, t)
	return nil
}

// Lookup returns a snapshot of one task.
func (s *Scheduler) Lookup(id TaskID) (TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.reg.Lookup(id)
	if err != nil {
		return TaskInfo{}, err
	}
	return t.info(s.tick.Now()), nil
}

// Snapshot lists every live task, idle first.
func (s *Scheduler) Snapshot() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick.Now()
	tasks := s.reg.Tasks()
	out := make([]TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.info(now))
	}
	return out
}

// Now is the current tick.
func (s *Scheduler) Now() uint64 { return s.tick.Now() }

// Live is the number of live tasks, idle excluded.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Live()
}

// FreeStack is the number of unreserved arena bytes.
func (s *Scheduler) FreeStack() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Arena().Free()
}

func (s *Scheduler) BootID() string { return s.bootID.String() }

// host is the body of every task goroutine.
func (s *Scheduler) host(t *TCB) {
	task := &Task{
		s:   s,
		tcb: t,
		log: s.log.With("task", t.Name, "task_id", uint64(t.ID)),
	}
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.fatalLocked(t, fmt.Errorf("%w: task %q panicked: %v", ErrCorruptedContext, t.Name, r))
		}
	}()

	t.entry(task)
	task.Exit()
}

// lockFor enters the critical section on behalf of cur, the task whose
// goroutine is calling. It does not return if the scheduler has stopped or
// cur was terminated from outside while running.
func (s *Scheduler) lockFor(cur *TCB) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		runtime.Goexit()
	}
	if s.current != cur {
		s.fatalLocked(cur, fmt.Errorf("%w: task %d called the scheduler while not running", ErrCorruptedContext, cur.ID))
	}
	if cur.State == Terminated {
		s.exitLocked(cur)
	}
}

// advanceLocked services one timer interrupt.
func (s *Scheduler) advanceLocked() {
	tick, woken := s.tick.Advance()
	s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusTick, TaskID: s.current.ID, Priority: s.current.Priority})
	for _, t := range woken {
		s.record(StatusWake, t)
	}

	if s.cfg.StopAfterTicks > 0 && tick >= s.cfg.StopAfterTicks {
		s.log.Debug("tick limit reached", "tick", tick)
		s.shutdownLocked()
		s.mu.Unlock()
		runtime.Goexit()
	}
}

// makeReadyLocked puts cur back at the tail of its level. The idle task is
// never queued; it is what DequeueHighest falls back to.
func (s *Scheduler) makeReadyLocked(cur *TCB) {
	cur.State = Ready
	if cur == s.idle {
		return
	}
	if err := s.ready.Enqueue(cur.ID, cur.Priority); err != nil {
		s.fatalLocked(cur, fmt.Errorf("%w: %v", ErrCorruptedContext, err))
	}
}

// scheduleLocked makes a scheduling decision on behalf of cur. It is entered
// with the lock held and returns with it released, once cur owns the CPU
// again. If cur is still Running it only loses the CPU to a strictly higher
// priority; otherwise the highest Ready task (or idle) takes over.
func (s *Scheduler) scheduleLocked(cur *TCB) {
	if cur.State == Running {
		hp, ok := s.ready.Highest()
		if !ok || (cur != s.idle && hp <= cur.Priority) {
			s.auditLocked(cur)
			s.mu.Unlock()
			return
		}
		if cur != s.idle {
			s.record(StatusPreempt, cur)
		}
		s.makeReadyLocked(cur)
	}

	next := s.pickLocked(cur)
	if next == cur {
		cur.State = Running
		s.auditLocked(cur)
		s.mu.Unlock()
		return
	}
	s.switchLocked(cur, next)
}

// pickLocked dequeues the highest Ready task, or idle when none is.
func (s *Scheduler) pickLocked(cur *TCB) *TCB {
	id, _, err := s.ready.DequeueHighest()
	if errors.Is(err, ErrEmptyQueue) {
		return s.idle
	}
	t, err := s.reg.Lookup(id)
	if err != nil {
		s.fatalLocked(cur, fmt.Errorf("%w: ready queue holds %v", ErrCorruptedContext, err))
	}
	return t
}

// switchLocked saves prev, restores next and parks prev's goroutine until it
// is switched back in. A terminated prev never comes back.
func (s *Scheduler) switchLocked(prev, next *TCB) {
	if prev.State != Terminated && !prev.Stack.Intact() {
		s.fatalLocked(prev, fmt.Errorf("%w: stack guard of task %d (%s) overwritten", ErrCorruptedContext, prev.ID, prev.Name))
	}
	if !next.Stack.Intact() {
		s.fatalLocked(prev, fmt.Errorf("%w: stack guard of task %d (%s) overwritten", ErrCorruptedContext, next.ID, next.Name))
	}

	now := s.tick.Now()
	prev.RunTicks += now - prev.dispatchedAt
	next.State = Running
	next.dispatchedAt = now
	s.current = next
	s.record(s.dispatchKind(next), next)
	s.auditLocked(prev)

	// next may run as soon as the lock is released, so prev's state is
	// only read before that.
	dead := prev.State == Terminated
	prev.ctx.Save()
	next.ctx.Restore()
	s.mu.Unlock()

	if dead {
		runtime.Goexit()
	}
	s.park(prev)
}

// park blocks t's goroutine until it is restored.
func (s *Scheduler) park(t *TCB) {
	select {
	case <-t.ctx.resume:
	case <-s.done:
		runtime.Goexit()
	}

	s.mu.Lock()
	dead := t.State == Terminated && s.current != t
	s.mu.Unlock()
	if dead {
		runtime.Goexit()
	}
}

// exitLocked terminates cur, the calling task, and hands the CPU on.
func (s *Scheduler) exitLocked(cur *TCB) {
	if cur.State != Terminated {
		if _, err := s.reg.Detach(cur.ID); err != nil {
			s.fatalLocked(cur, fmt.Errorf("%w: %v", ErrCorruptedContext, err))
		}
		s.record(StatusFinish, cur)
	}
	s.reg.Reclaim(cur)
	s.scheduleLocked(cur)
}

// fatalLocked reports err, stops the scheduler and halts. It never returns
// to the caller.
func (s *Scheduler) fatalLocked(cur *TCB, err error) {
	d := Diagnostic{
		Severity: SeverityFatal,
		Message:  err.Error(),
		Tick:     s.tick.Now(),
	}
	if cur != nil {
		d.TaskID = cur.ID
		d.HasTask = true
	}
	s.sink.Emit(d)
	if s.err == nil {
		s.err = err
	}
	s.halting.Add(1)
	s.shutdownLocked()
	s.mu.Unlock()

	defer s.halting.Done()
	s.halter.Halt(d)
	runtime.Goexit()
}

func (s *Scheduler) shutdownLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.timer.Stop()
	close(s.done)
	close(s.statusCh)
}

// auditLocked re-checks the partition invariant when enabled. A violation
// is fatal.
func (s *Scheduler) auditLocked(cur *TCB) {
	if !s.cfg.Audit {
		return
	}
	if err := s.checkPartitionLocked(); err != nil {
		s.fatalLocked(cur, fmt.Errorf("%w: %v", ErrCorruptedContext, err))
	}
}

// checkPartitionLocked verifies that every live task sits in exactly the
// structure its state calls for: ready queue, timer wheel, running slot, or
// none at all while Blocked.
func (s *Scheduler) checkPartitionLocked() error {
	if s.current == nil {
		return errors.New("running slot is empty")
	}
	if st := s.current.State; st != Running && st != Terminated {
		return fmt.Errorf("running slot holds task %d in state %s", s.current.ID, st)
	}

	queued, sleeping := 0, 0
	for _, t := range s.reg.Tasks() {
		inReady := t != s.idle && s.ready.Contains(t.ID, t.Priority)
		inWheel := s.wheel.Contains(t.ID)
		running := s.current == t

		var ok bool
		switch t.State {
		case Ready:
			ok = (inReady || t == s.idle) && !inWheel && !running
			if inReady {
				queued++
			}
		case Sleeping:
			ok = inWheel && !inReady && !running
			sleeping++
		case Running:
			ok = running && !inReady && !inWheel
		case Blocked:
			ok = !inReady && !inWheel && !running
		}
		if !ok {
			return fmt.Errorf("task %d (%s) is %s but ready=%t wheel=%t running=%t",
				t.ID, t.Name, t.State, inReady, inWheel, running)
		}
	}

	if queued != s.ready.Len() {
		return fmt.Errorf("ready queue holds %d entries for %d ready tasks", s.ready.Len(), queued)
	}
	if sleeping != s.wheel.Len() {
		return fmt.Errorf("timer wheel holds %d entries for %d sleeping tasks", s.wheel.Len(), sleeping)
	}
	return nil
}

func (s *Scheduler) dispatchKind(t *TCB) StatusKind {
	if t == s.idle {
		return StatusIdle
	}
	return StatusDispatch
}

// record emits an event about t.
func (s *Scheduler) record(kind StatusKind, t *TCB) {
	ev := StatusEvent{
		Time:     time.Now(),
		Tick:     s.tick.Now(),
		Kind:     kind,
		TaskID:   t.ID,
		Priority: t.Priority,
	}
	if kind == StatusSleep {
		ev.WakeTick = t.WakeTick
	}
	switch kind {
	case StatusPreempt, StatusYield, StatusSleep, StatusBlock, StatusFinish:
		if s.current == t {
			ev.RanTicks = ev.Tick - t.dispatchedAt
		}
	}
	s.emit(ev)
}

// emit queues ev for the recorders. Before Run, events are kept aside so
// Spawn never blocks on a stream nobody reads yet.
func (s *Scheduler) emit(ev StatusEvent) {
	if s.stopped {
		return
	}
	if !s.started {
		s.backlog = append(s.backlog, ev)
		return
	}
	s.statusCh <- ev
}
