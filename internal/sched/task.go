package sched

import "fmt"

// TaskID uniquely identifies a task for the lifetime of the process.
type TaskID uint64

// IdleTaskID is reserved for the idle task.
const IdleTaskID TaskID = 0

// TaskState is the lifecycle state of a TCB.
type TaskState int

const (
	Ready TaskState = iota
	Running
	Blocked
	Sleeping
	Terminated
)

func (s TaskState) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Sleeping:
		return "Sleeping"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
}

// EntryFunc is a task body. Returning from it terminates the task.
type EntryFunc func(t *Task)

// TCB is the task control block: the metadata and saved state of one
// schedulable unit. All fields are guarded by the scheduler lock.
type TCB struct {
	ID       TaskID
	Name     string
	Priority int // higher number runs first
	State    TaskState
	WakeTick uint64 // valid only while Sleeping
	Stack    *StackRegion

	ctx      *Context
	entry    EntryFunc
	notified uint32 // pending notifications, consumed by Task.Wait

	dispatchedAt uint64 // tick of the last dispatch
	RunTicks     uint64 // ticks spent Running, up to the last switch-out
}

// newTCB creates a Ready TCB owning the given stack region.
func newTCB(id TaskID, name string, priority int, stack *StackRegion, entry EntryFunc) *TCB {
	return &TCB{
		ID:       id,
		Name:     name,
		Priority: priority,
		State:    Ready,
		Stack:    stack,
		entry:    entry,
	}
}

// TaskInfo is a point-in-time copy of a TCB for observers.
type TaskInfo struct {
	ID         TaskID `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Priority   int    `json:"priority"`
	WakeTick   uint64 `json:"wake_tick,omitempty"`
	StackBytes int    `json:"stack_bytes"`
	RunTicks   uint64 `json:"run_ticks"`
	Switches   uint64 `json:"switches"`
}

func (t *TCB) info(now uint64) TaskInfo {
	ti := TaskInfo{
		ID:       t.ID,
		Name:     t.Name,
		State:    t.State.String(),
		Priority: t.Priority,
		RunTicks: t.RunTicks,
	}
	if t.State == Sleeping {
		ti.WakeTick = t.WakeTick
	}
	if t.State == Running {
		ti.RunTicks += now - t.dispatchedAt
	}
	if t.Stack != nil {
		ti.StackBytes = t.Stack.Size()
	}
	if t.ctx != nil {
		ti.Switches = t.ctx.switches
	}
	return ti
}
