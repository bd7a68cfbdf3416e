package job

import "vrtos/internal/sched"

// Periodic returns a task body that logs message, burns burnTicks of CPU and
// then sleeps for periodTicks, count times (forever when count is 0).
func Periodic(message string, periodTicks uint64, burnTicks, count int) sched.EntryFunc {
	return func(t *sched.Task) {
		for i := 0; count == 0 || i < count; i++ {
			t.Logger().Info(message, "tick", t.Now(), "iteration", i+1)
			t.Burn(burnTicks)
			t.SleepFor(periodTicks)
		}
	}
}

// Busy returns a task body that burns ticks of CPU and exits.
func Busy(ticks int) sched.EntryFunc {
	return func(t *sched.Task) {
		t.Burn(ticks)
	}
}
