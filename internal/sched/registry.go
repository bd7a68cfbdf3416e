package sched

import (
	"fmt"
	"sort"
)

// Registry owns every TCB and, through the arena, every task stack.
type Registry struct {
	arena    *Arena
	tasks    map[TaskID]*TCB
	idle     *TCB
	nextID   TaskID
	levels   int
	maxTasks int
	minStack int
	guard    int
}

func NewRegistry(arena *Arena, cfg Config) *Registry {
	cfg = cfg.sanitized()
	return &Registry{
		arena:    arena,
		tasks:    make(map[TaskID]*TCB),
		levels:   cfg.PriorityLevels,
		maxTasks: cfg.MaxTasks,
		minStack: cfg.MinStackBytes,
		guard:    cfg.GuardBytes,
	}
}

// Spawn creates a Ready TCB with a freshly reserved stack. Priorities outside
// the configured levels are clamped. On failure nothing is created.
func (r *Registry) Spawn(name string, entry EntryFunc, priority, stackSize int) (*TCB, error) {
	if entry == nil {
		return nil, fmt.Errorf("spawn %q: nil entry function", name)
	}

	// clamp priority within the legal region.
	if priority < 0 {
		priority = 0
	} else if priority >= r.levels {
		priority = r.levels - 1
	}

	if len(r.tasks) >= r.maxTasks {
		return nil, fmt.Errorf("spawn %q: %w: task table full (%d tasks)", name, ErrOutOfMemory, r.maxTasks)
	}

	stack, err := r.reserve(stackSize)
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", name, err)
	}

	r.nextID++
	t := newTCB(r.nextID, name, priority, stack, entry)
	r.tasks[t.ID] = t
	return t, nil
}

// spawnIdle creates the idle task. It lives outside the task table, so it
// can never be looked up for termination nor counted as live.
func (r *Registry) spawnIdle(entry EntryFunc, stackSize int) (*TCB, error) {
	stack, err := r.reserve(stackSize)
	if err != nil {
		return nil, err
	}
	r.idle = newTCB(IdleTaskID, "IDLE", 0, stack, entry)
	return r.idle, nil
}

func (r *Registry) reserve(stackSize int) (*StackRegion, error) {
	if stackSize < r.minStack {
		stackSize = r.minStack
	}
	stack, err := r.arena.Reserve(stackSize)
	if err != nil {
		return nil, err
	}
	stack.paintGuard(r.guard)
	return stack, nil
}

// Lookup returns the TCB behind id. The reference is only valid until the
// task terminates.
func (r *Registry) Lookup(id TaskID) (*TCB, error) {
	if id == IdleTaskID && r.idle != nil {
		return r.idle, nil
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrInvalidHandle)
	}
	return t, nil
}

// Terminate marks id Terminated, drops it from the table and reclaims its
// stack. Unknown or already terminated handles fail without side effects.
// Removing the task from the ready queue or timer wheel is the caller's job.
func (r *Registry) Terminate(id TaskID) (*TCB, error) {
	t, err := r.Detach(id)
	if err != nil {
		return nil, err
	}
	r.Reclaim(t)
	return t, nil
}

// Detach is Terminate without reclaiming the stack, for a task that is still
// executing on it.
func (r *Registry) Detach(id TaskID) (*TCB, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("terminate task %d: %w", id, ErrInvalidHandle)
	}
	delete(r.tasks, id)
	t.State = Terminated
	t.WakeTick = 0
	return t, nil
}

// Reclaim returns a detached task's stack to the arena.
func (r *Registry) Reclaim(t *TCB) {
	if t.Stack == nil {
		return
	}
	r.arena.Release(t.Stack)
	t.Stack = nil
}

// Live is the number of non-terminated tasks, idle excluded.
func (r *Registry) Live() int { return len(r.tasks) }

// Tasks lists live tasks in ID order, idle first.
func (r *Registry) Tasks() []*TCB {
	out := make([]*TCB, 0, len(r.tasks)+1)
	if r.idle != nil {
		out = append(out, r.idle)
	}
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Arena exposes the stack arena for accounting.
func (r *Registry) Arena() *Arena { return r.arena }
