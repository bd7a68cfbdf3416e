package sched

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaReserveAlignsAndExhausts(t *testing.T) {
	a := NewArena(1024)
	r1, err := a.Reserve(500)
	require.NoError(t, err)
	assert.Equal(t, 512, r1.Size())
	assert.Equal(t, 512, a.Free())

	r2, err := a.Reserve(512)
	require.NoError(t, err)
	assert.Equal(t, 512, r2.Offset)
	assert.Zero(t, a.Free())

	_, err = a.Reserve(16)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestArenaReleaseCoalesces(t *testing.T) {
	a := NewArena(768)
	r1, _ := a.Reserve(256)
	r2, _ := a.Reserve(256)
	r3, _ := a.Reserve(256)

	a.Release(r1)
	a.Release(r3)
	assert.Equal(t, 2, a.Blocks())
	_, err := a.Reserve(512)
	assert.ErrorIs(t, err, ErrOutOfMemory, "free space is fragmented")

	a.Release(r2)
	assert.Equal(t, 1, a.Blocks())
	r, err := a.Reserve(768)
	require.NoError(t, err)
	assert.Zero(t, r.Offset)
}

func TestArenaReleaseIsIdempotentAndZeroes(t *testing.T) {
	a := NewArena(256)
	r, _ := a.Reserve(256)
	r.Mem[100] = 7
	a.Release(r)
	a.Release(r)
	assert.Equal(t, 256, a.Free())

	again, _ := a.Reserve(256)
	assert.Zero(t, again.Mem[100])
}

func TestStackGuard(t *testing.T) {
	a := NewArena(256)
	r, _ := a.Reserve(256)
	r.paintGuard(16)
	assert.True(t, r.Intact())

	r.Mem[15] = 0
	assert.False(t, r.Intact())
	r.Mem[15] = guardPattern
	r.Mem[16] = 0
	assert.True(t, r.Intact(), "bytes above the guard are the task's own")
}

func TestArenaRejectsOversizedRequestUntouched(t *testing.T) {
	a := NewArena(1024)
	r, err := a.Reserve(256)
	require.NoError(t, err)

	for _, size := range []int{1025, math.MaxInt - 3, math.MaxInt} {
		_, err := a.Reserve(size)
		assert.ErrorIs(t, err, ErrOutOfMemory, "size %d", size)
	}
	assert.Equal(t, 768, a.Free())
	assert.Equal(t, 1, a.Blocks())

	a.Release(r)
	assert.Equal(t, 1024, a.Free())
}
