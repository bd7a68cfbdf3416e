package job

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"vrtos/internal/logging"
	"vrtos/internal/sched"
)

// TaskSpec declares one task of a workload.
type TaskSpec struct {
	Name      string `hcl:"name,label"`
	Priority  int    `hcl:"priority"`
	StackSize int    `hcl:"stack_size,optional"`
	PeriodMS  int    `hcl:"period_ms,optional"`
	BurnTicks int    `hcl:"burn_ticks,optional"`
	Message   string `hcl:"message,optional"`
	Count     int    `hcl:"count,optional"`
}

// Workload is the set of tasks spawned at boot.
type Workload struct {
	Tasks []TaskSpec `hcl:"task,block"`
}

// DefaultWorkload is the single blinker task: priority 1 above idle, a 4 KiB
// stack and a one second period.
func DefaultWorkload() Workload {
	return Workload{Tasks: []TaskSpec{{
		Name:      "blinker",
		Priority:  1,
		StackSize: 4096,
		PeriodMS:  1000,
		Message:   "Hello from the blinker task",
	}}}
}

// LoadWorkload reads a workload file. An empty path means DefaultWorkload.
func LoadWorkload(ctx context.Context, path string) (Workload, error) {
	logger := logging.FromContext(ctx)
	if path == "" {
		logger.Debug("No workload file given, using the blinker")
		return DefaultWorkload(), nil
	}
	logger.Debug("Loading workload", "path", path)

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return Workload{}, fmt.Errorf("failed to parse workload %s: %w", path, diags)
	}
	return decodeWorkload(file, path)
}

// ParseWorkload decodes workload source; filename is only used in messages.
func ParseWorkload(src []byte, filename string) (Workload, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return Workload{}, fmt.Errorf("failed to parse workload %s: %w", filename, diags)
	}
	return decodeWorkload(file, filename)
}

func decodeWorkload(file *hcl.File, filename string) (Workload, error) {
	var w Workload
	if diags := gohcl.DecodeBody(file.Body, nil, &w); diags.HasErrors() {
		return Workload{}, fmt.Errorf("failed to decode workload %s: %w", filename, diags)
	}
	if err := w.validate(); err != nil {
		return Workload{}, fmt.Errorf("workload %s: %w", filename, err)
	}
	return w, nil
}

func (w Workload) validate() error {
	seen := make(map[string]bool, len(w.Tasks))
	for _, ts := range w.Tasks {
		if seen[ts.Name] {
			return fmt.Errorf("task %q declared twice", ts.Name)
		}
		seen[ts.Name] = true
		if ts.StackSize < 0 || ts.PeriodMS < 0 || ts.BurnTicks < 0 || ts.Count < 0 {
			return fmt.Errorf("task %q: negative values are not allowed", ts.Name)
		}
	}
	return nil
}

// Spawner creates tasks; *sched.Scheduler implements it.
type Spawner interface {
	Spawn(name string, entry sched.EntryFunc, priority, stackSize int) (sched.TaskID, error)
}

// Entry builds the task body: periodic when a period is set, otherwise a
// one-shot CPU burn.
func (ts TaskSpec) Entry(cfg sched.Config) sched.EntryFunc {
	if ts.PeriodMS > 0 {
		msg := ts.Message
		if msg == "" {
			msg = ts.Name
		}
		return Periodic(msg, cfg.MsToTicks(ts.PeriodMS), ts.BurnTicks, ts.Count)
	}
	return Busy(ts.BurnTicks)
}

// Spawn creates every task of w in declaration order and stops at the first
// failure.
func (w Workload) Spawn(sp Spawner, cfg sched.Config) ([]sched.TaskID, error) {
	ids := make([]sched.TaskID, 0, len(w.Tasks))
	for _, ts := range w.Tasks {
		id, err := sp.Spawn(ts.Name, ts.Entry(cfg), ts.Priority, ts.StackSize)
		if err != nil {
			return ids, fmt.Errorf("spawn workload task %q: %w", ts.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
