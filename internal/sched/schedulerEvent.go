// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusPreempt
	StatusFinish
	StatusTick
	StatusSleep
	StatusWake
	StatusYield
	StatusBlock
)

var statusNames = map[StatusKind]string{
	StatusIdle:     "Idle",
	StatusEnqueue:  "Enqueued",
	StatusDispatch: "Dispatch",
	StatusPreempt:  "Preempt",
	StatusFinish:   "Finish",
	StatusTick:     "Tick",
	StatusSleep:    "Sleep",
	StatusWake:     "Wake",
	StatusYield:    "Yield",
	StatusBlock:    "Block",
}

func (sk StatusKind) String() string {
	if name, ok := statusNames[sk]; ok {
		return name
	}
	return "Unknown"
}

// ParseStatusKind is the inverse of StatusKind.String.
func ParseStatusKind(s string) (StatusKind, bool) {
	for k, name := range statusNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// StatusEvent is emitted every tick or on key actions.
// For StatusTick, TaskID is the task that was running when the tick fired.
type StatusEvent struct {
	Time     time.Time
	Tick     uint64
	Kind     StatusKind
	TaskID   TaskID
	Priority int
	WakeTick uint64 // set on StatusSleep
	RanTicks uint64 // ticks since the task's last dispatch
}

// Recorder consumes the scheduler's event stream. Record is called from a
// single goroutine, in emission order. Close is called once the stream ends.
type Recorder interface {
	Record(ev StatusEvent)
	Close() error
}
