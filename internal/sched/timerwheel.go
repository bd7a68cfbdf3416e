package sched

import (
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// TimerWheel holds sleeping tasks ordered by wake tick. Entries with the same
// wake tick expire in insertion order.
type TimerWheel struct {
	tree    *redblacktree.Tree // wheelKey -> TaskID
	keys    map[TaskID]wheelKey
	seq     uint64
	reg     *Registry
	ready   *ReadyQueue
	expired []*TCB
}

func NewTimerWheel(reg *Registry, ready *ReadyQueue) *TimerWheel {
	return &TimerWheel{
		tree:  redblacktree.NewWith(wheelCmp),
		keys:  make(map[TaskID]wheelKey),
		reg:   reg,
		ready: ready,
	}
}

// SleepUntil moves t to Sleeping until wake. A Ready task is taken out of
// the ready queue; a task that is already asleep gets its wake tick replaced.
func (w *TimerWheel) SleepUntil(t *TCB, wake uint64) error {
	switch t.State {
	case Running:
	case Ready:
		w.ready.Remove(t.ID, t.Priority)
	case Sleeping:
		w.Cancel(t.ID)
	default:
		return fmt.Errorf("sleep task %d: %w: %s", t.ID, ErrInvalidTaskState, t.State)
	}

	w.seq++
	key := wheelKey{wake: wake, seq: w.seq}
	w.tree.Put(key, t.ID)
	w.keys[t.ID] = key
	t.State = Sleeping
	t.WakeTick = wake
	return nil
}

// Cancel drops id's entry, if any. The task's state is left to the caller.
func (w *TimerWheel) Cancel(id TaskID) bool {
	key, ok := w.keys[id]
	if !ok {
		return false
	}
	w.tree.Remove(key)
	delete(w.keys, id)
	return true
}

// Expire releases every task whose wake tick is at or before tick, marking it
// Ready at the tail of its priority level. The returned slice is reused by
// the next call.
func (w *TimerWheel) Expire(tick uint64) []*TCB {
	w.expired = w.expired[:0]
	for {
		node := w.tree.Left()
		if node == nil {
			break
		}
		key := node.Key.(wheelKey)
		if key.wake > tick {
			break
		}
		id := node.Value.(TaskID)
		w.tree.Remove(key)
		delete(w.keys, id)

		t, err := w.reg.Lookup(id)
		if err != nil {
			// terminated tasks are cancelled first, so this entry is stale
			continue
		}
		// every level holds max_tasks+1 entries, so this cannot fail
		_ = w.ready.Enqueue(t.ID, t.Priority)
		t.State = Ready
		t.WakeTick = 0
		w.expired = append(w.expired, t)
	}
	return w.expired
}

// Next returns the earliest pending wake tick.
func (w *TimerWheel) Next() (uint64, bool) {
	node := w.tree.Left()
	if node == nil {
		return 0, false
	}
	return node.Key.(wheelKey).wake, true
}

func (w *TimerWheel) Contains(id TaskID) bool {
	_, ok := w.keys[id]
	return ok
}

func (w *TimerWheel) Len() int { return w.tree.Size() }

// wheelKey is used as a key in the red-black tree.
type wheelKey struct {
	wake uint64
	seq  uint64
}

// wheelCmp orders keys by wake tick, then by insertion.
func wheelCmp(a, b any) int {
	ka, kb := a.(wheelKey), b.(wheelKey)
	switch {
	case ka.wake < kb.wake:
		return -1
	case ka.wake > kb.wake:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
