package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"vrtos/internal/sched"
)

var csvHeader = []string{"timestamp", "tick", "event", "task_id", "priority", "wake_tick", "ran_ticks"}

// CSVRecorder writes every non-tick event as one CSV row.
type CSVRecorder struct {
	path string

	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	once sync.Once
	err  error
}

// NewCSVRecorder creates path, or vrtos_trace_<xid>.csv when path is empty,
// and writes the header. The file is flushed on exit even if the scheduler
// halts before closing its recorders.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	if path == "" {
		path = "vrtos_trace_" + xid.New().String() + ".csv"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv trace: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()

	r := &CSVRecorder{path: path, f: f, w: w}
	atexit.Register(func() { _ = r.Close() })
	return r, nil
}

// Path is the file being written.
func (r *CSVRecorder) Path() string { return r.path }

func (r *CSVRecorder) Record(ev sched.StatusEvent) {
	if ev.Kind == sched.StatusTick {
		return
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		strconv.Itoa(ev.Priority),
		strconv.FormatUint(ev.WakeTick, 10),
		strconv.FormatUint(ev.RanTicks, 10),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return
	}
	_ = r.w.Write(rec)
	r.w.Flush()
}

// Close flushes and closes the file. Later calls return the first result.
func (r *CSVRecorder) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.w.Flush()
		r.err = r.w.Error()
		if err := r.f.Close(); r.err == nil {
			r.err = err
		}
		r.w = nil
	})
	return r.err
}
