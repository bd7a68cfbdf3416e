package sched

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
)

const (
	stackAlign   = 16
	guardPattern = 0xA5
)

func alignUp(n int) int {
	return (n + stackAlign - 1) &^ (stackAlign - 1)
}

// Arena is the process-wide memory that task stacks are carved from.
// Free blocks are kept in offset order so released regions coalesce with
// their neighbours.
type Arena struct {
	mem   []byte
	free  *treemap.Map // offset -> length
	inUse int
}

// NewArena reserves size bytes, rounded down to the stack alignment.
func NewArena(size int) *Arena {
	size &^= stackAlign - 1
	if size < 0 {
		size = 0
	}
	a := &Arena{
		mem:  make([]byte, size),
		free: treemap.NewWithIntComparator(),
	}
	if size > 0 {
		a.free.Put(0, size)
	}
	return a
}

// Reserve carves a region of at least size bytes out of the first free block
// large enough to hold it.
func (a *Arena) Reserve(size int) (*StackRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid stack size %d", size)
	}
	// checked before aligning, which would overflow near math.MaxInt
	if size > len(a.mem) {
		return nil, fmt.Errorf("%w: stack of %d bytes exceeds the %d byte arena",
			ErrOutOfMemory, size, a.Size())
	}
	size = alignUp(size)

	off, length := -1, 0
	it := a.free.Iterator()
	for it.Next() {
		if l := it.Value().(int); l >= size {
			off, length = it.Key().(int), l
			break
		}
	}
	if off < 0 {
		return nil, fmt.Errorf("%w: no free block of %d bytes (%d of %d free)",
			ErrOutOfMemory, size, a.Free(), a.Size())
	}

	a.free.Remove(off)
	if length > size {
		a.free.Put(off+size, length-size)
	}
	a.inUse += size

	return &StackRegion{
		Offset: off,
		Mem:    a.mem[off : off+size : off+size],
	}, nil
}

// Release returns r to the arena. Releasing twice is a no-op.
func (a *Arena) Release(r *StackRegion) {
	if r == nil || r.Mem == nil {
		return
	}
	n := len(r.Mem)
	clear(r.Mem)

	off, end := r.Offset, r.Offset+n
	if k, v := a.free.Floor(off); k != nil && k.(int)+v.(int) == off {
		a.free.Remove(k)
		off = k.(int)
	}
	if k, v := a.free.Ceiling(end); k != nil && k.(int) == end {
		a.free.Remove(k)
		end += v.(int)
	}
	a.free.Put(off, end-off)

	a.inUse -= n
	r.Mem = nil
}

// Size is the total arena size in bytes.
func (a *Arena) Size() int { return len(a.mem) }

// Free is the number of unreserved bytes, possibly fragmented.
func (a *Arena) Free() int { return len(a.mem) - a.inUse }

// Blocks is the number of free blocks.
func (a *Arena) Blocks() int { return a.free.Size() }

// StackRegion is one task's stack. The stack grows down, so the guard band
// sits at the low end: Mem[:guard] must keep its pattern for the whole life
// of the task.
type StackRegion struct {
	Offset int
	Mem    []byte
	guard  int
}

func (r *StackRegion) paintGuard(n int) {
	if n > len(r.Mem) {
		n = len(r.Mem)
	}
	r.guard = n
	for i := range r.Mem[:n] {
		r.Mem[i] = guardPattern
	}
}

// Intact reports whether the guard band is untouched.
func (r *StackRegion) Intact() bool {
	if r == nil || r.Mem == nil {
		return false
	}
	for _, b := range r.Mem[:r.guard] {
		if b != guardPattern {
			return false
		}
	}
	return true
}

func (r *StackRegion) Size() int { return len(r.Mem) }
