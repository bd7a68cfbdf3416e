package sched

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*Task) {}

func newTestRegistry(arenaBytes int) *Registry {
	cfg := DefaultConfig()
	cfg.ArenaBytes = arenaBytes
	return NewRegistry(NewArena(cfg.ArenaBytes), cfg)
}

func TestRegistrySpawnLastRegionThenOutOfMemory(t *testing.T) {
	r := newTestRegistry(2048)
	_, err := r.Spawn("first", noop, 1, 1024)
	require.NoError(t, err)
	require.Equal(t, 1024, r.Arena().Free())

	second, err := r.Spawn("second", noop, 1, 1024)
	require.NoError(t, err, "exactly one stack-sized region is left")
	assert.Equal(t, Ready, second.State)

	_, err = r.Spawn("third", noop, 1, 1024)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 2, r.Live())
}

func TestRegistryDoubleTerminate(t *testing.T) {
	r := newTestRegistry(4096)
	a, err := r.Spawn("a", noop, 1, 512)
	require.NoError(t, err)
	_, err = r.Spawn("b", noop, 1, 512)
	require.NoError(t, err)
	free := r.Arena().Free()

	tcb, err := r.Terminate(a.ID)
	require.NoError(t, err)
	assert.Equal(t, Terminated, tcb.State)
	assert.Nil(t, tcb.Stack)
	assert.Equal(t, free+512, r.Arena().Free())
	assert.Equal(t, 1, r.Live())

	_, err = r.Terminate(a.ID)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.Equal(t, 1, r.Live())
	assert.Equal(t, free+512, r.Arena().Free())

	_, err = r.Terminate(999)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = r.Lookup(a.ID)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestRegistryHandlesAreNeverReused(t *testing.T) {
	r := newTestRegistry(4096)
	a, _ := r.Spawn("a", noop, 1, 256)
	_, err := r.Terminate(a.ID)
	require.NoError(t, err)
	b, _ := r.Spawn("b", noop, 1, 256)
	assert.Greater(t, b.ID, a.ID)
}

func TestRegistryClampsPriorityAndStack(t *testing.T) {
	r := newTestRegistry(4096)
	hi, err := r.Spawn("hi", noop, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PriorityLevels-1, hi.Priority)
	assert.Equal(t, DefaultConfig().MinStackBytes, hi.Stack.Size())
	assert.True(t, hi.Stack.Intact())

	lo, err := r.Spawn("lo", noop, -3, 256)
	require.NoError(t, err)
	assert.Zero(t, lo.Priority)

	_, err = r.Spawn("nil", nil, 1, 256)
	assert.Error(t, err)
}

func TestRegistryTaskTableLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTasks = 2
	r := NewRegistry(NewArena(cfg.ArenaBytes), cfg)
	_, _ = r.Spawn("a", noop, 1, 256)
	_, _ = r.Spawn("b", noop, 1, 256)
	_, err := r.Spawn("c", noop, 1, 256)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestRegistryHugeStackIsOutOfMemory(t *testing.T) {
	r := newTestRegistry(4096)
	_, err := r.Spawn("a", noop, 1, 512)
	require.NoError(t, err)
	free := r.Arena().Free()

	_, err = r.Spawn("huge", noop, 1, math.MaxInt-3)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 1, r.Live())
	assert.Equal(t, free, r.Arena().Free())

	b, err := r.Spawn("b", noop, 1, 512)
	require.NoError(t, err, "the arena is still usable")
	assert.True(t, b.Stack.Intact())
}
