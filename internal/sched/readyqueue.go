package sched

import (
	"fmt"
	"math/bits"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// MaxPriorityLevels is bounded by the width of the occupancy bitmap.
const MaxPriorityLevels = 64

// ReadyQueue keeps runnable tasks in one FIFO per priority level. Bit p of
// mask is set while level p is non-empty, so finding the highest runnable
// level costs one bits.Len64 regardless of how many tasks are queued.
type ReadyQueue struct {
	levels []*circularbuffer.Queue
	mask   uint64
	size   int
}

// NewReadyQueue creates a queue with the given number of levels, each able to
// hold capacity tasks.
func NewReadyQueue(levels, capacity int) *ReadyQueue {
	if levels < 1 {
		levels = 1
	} else if levels > MaxPriorityLevels {
		levels = MaxPriorityLevels
	}
	if capacity < 1 {
		capacity = 1
	}

	q := &ReadyQueue{levels: make([]*circularbuffer.Queue, levels)}
	for i := range q.levels {
		q.levels[i] = circularbuffer.New(capacity)
	}
	return q
}

func (q *ReadyQueue) level(priority int) (*circularbuffer.Queue, error) {
	if priority < 0 || priority >= len(q.levels) {
		return nil, fmt.Errorf("priority %d outside 0..%d", priority, len(q.levels)-1)
	}
	return q.levels[priority], nil
}

// Enqueue appends id at the tail of its priority level.
func (q *ReadyQueue) Enqueue(id TaskID, priority int) error {
	level, err := q.level(priority)
	if err != nil {
		return err
	}
	// the circular buffer silently overwrites its oldest entry when full
	if level.Full() {
		return fmt.Errorf("ready queue level %d is full (%d tasks)", priority, level.Size())
	}

	level.Enqueue(id)
	q.mask |= 1 << uint(priority)
	q.size++
	return nil
}

// DequeueHighest removes and returns the head of the highest non-empty level.
func (q *ReadyQueue) DequeueHighest() (TaskID, int, error) {
	if q.mask == 0 {
		return 0, 0, ErrEmptyQueue
	}

	priority := bits.Len64(q.mask) - 1
	level := q.levels[priority]
	v, _ := level.Dequeue()
	if level.Empty() {
		q.mask &^= 1 << uint(priority)
	}
	q.size--
	return v.(TaskID), priority, nil
}

// Highest reports the highest non-empty priority level.
func (q *ReadyQueue) Highest() (int, bool) {
	if q.mask == 0 {
		return 0, false
	}
	return bits.Len64(q.mask) - 1, true
}

// Remove takes id out of its level, keeping the order of the others.
func (q *ReadyQueue) Remove(id TaskID, priority int) bool {
	level, err := q.level(priority)
	if err != nil {
		return false
	}

	found := false
	q.rotate(level, func(v TaskID) bool {
		if v == id && !found {
			found = true
			return false
		}
		return true
	})
	if !found {
		return false
	}

	if level.Empty() {
		q.mask &^= 1 << uint(priority)
	}
	q.size--
	return true
}

// Contains reports whether id is queued at the given level.
func (q *ReadyQueue) Contains(id TaskID, priority int) bool {
	for _, v := range q.Tasks(priority) {
		if v == id {
			return true
		}
	}
	return false
}

// Tasks lists the level's queue, head first.
func (q *ReadyQueue) Tasks(priority int) []TaskID {
	level, err := q.level(priority)
	if err != nil {
		return nil
	}

	ids := make([]TaskID, 0, level.Size())
	q.rotate(level, func(v TaskID) bool {
		ids = append(ids, v)
		return true
	})
	return ids
}

// rotate walks a level once, head to tail, re-appending the entries keep
// accepts.
func (q *ReadyQueue) rotate(level *circularbuffer.Queue, keep func(TaskID) bool) {
	n := level.Size()
	for i := 0; i < n; i++ {
		v, _ := level.Dequeue()
		if keep(v.(TaskID)) {
			level.Enqueue(v)
		}
	}
}

// Len is the number of queued tasks across all levels.
func (q *ReadyQueue) Len() int { return q.size }

// Levels is the number of priority levels.
func (q *ReadyQueue) Levels() int { return len(q.levels) }
