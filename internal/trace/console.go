package trace

import (
	"fmt"
	"io"
	"strings"

	"vrtos/internal/sched"
)

// ConsoleRecorder prints one human-readable line per non-tick event.
type ConsoleRecorder struct {
	out       io.Writer
	ranTotals map[sched.TaskID]uint64
}

func NewConsoleRecorder(out io.Writer) *ConsoleRecorder {
	return &ConsoleRecorder{out: out, ranTotals: make(map[sched.TaskID]uint64)}
}

// center pads str on both sides to width.
func center(str string, width int) string {
	if len(str) >= width {
		return str
	}
	spaces := (width - len(str)) / 2
	return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
}

func (c *ConsoleRecorder) Record(ev sched.StatusEvent) {
	// ticks arrive every period; leave them out for brevity.
	if ev.Kind == sched.StatusTick {
		return
	}
	c.ranTotals[ev.TaskID] += ev.RanTicks

	line := fmt.Sprintf("%s = Tick: %07d [%s] => Task: %04d, Priority: %02d, Total ran: %04d ticks",
		ev.Time.Format("Jan 02 15:04:05.000"),
		ev.Tick,
		center(ev.Kind.String(), 10),
		ev.TaskID,
		ev.Priority,
		c.ranTotals[ev.TaskID],
	)
	if ev.Kind == sched.StatusSleep {
		line += fmt.Sprintf(", wake at %07d", ev.WakeTick)
	}
	fmt.Fprintln(c.out, line)
}

func (c *ConsoleRecorder) Close() error { return nil }
