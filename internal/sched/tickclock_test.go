package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickClockDeliversAndStops(t *testing.T) {
	c := NewTickClock(4)
	c.Start(time.Millisecond)

	assert.True(t, c.Wait())
	assert.GreaterOrEqual(t, c.Count(), int64(1))

	c.Stop()
	c.Stop()
	assert.False(t, c.Wait())
	assert.False(t, c.Poll())
}

func TestStepTimer(t *testing.T) {
	st := NewStepTimer()
	assert.True(t, st.Wait())
	assert.False(t, st.Poll())
	st.Stop()
	assert.False(t, st.Wait())
}
