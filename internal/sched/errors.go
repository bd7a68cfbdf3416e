package sched

import "errors"

var (
	// ErrOutOfMemory is returned by Spawn when no stack region (or task table
	// slot) can be reserved. Recoverable; nothing is created.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidHandle is returned for unknown or already terminated tasks.
	ErrInvalidHandle = errors.New("invalid task handle")

	// ErrInvalidTaskState is returned when an operation does not apply to the
	// task's current state.
	ErrInvalidTaskState = errors.New("invalid task state")

	// ErrEmptyQueue signals that no task is runnable. The scheduler falls
	// back to the idle task, so it never reaches callers.
	ErrEmptyQueue = errors.New("ready queue is empty")

	// ErrCorruptedContext marks a scheduling invariant violation. It always
	// halts the scheduler.
	ErrCorruptedContext = errors.New("corrupted task context")

	// ErrStopped is returned by operations issued after shutdown.
	ErrStopped = errors.New("scheduler stopped")
)
