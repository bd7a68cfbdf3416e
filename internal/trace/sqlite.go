package trace

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"vrtos/internal/sched"
)

const defaultBatchSize = 1000

// SQLiteRecorder buffers events and writes them to a SQLite database in
// batches, one transaction per batch.
type SQLiteRecorder struct {
	db        *sql.DB
	stmt      *sql.Stmt
	path      string
	batchSize int
	ticks     bool

	mu      sync.Mutex
	pending []sched.StatusEvent
	closed  bool
	err     error // first failed batch; returned by Close
}

// SQLiteOption configures a SQLiteRecorder.
type SQLiteOption func(*SQLiteRecorder)

// WithBatchSize sets how many events are buffered before a flush.
func WithBatchSize(n int) SQLiteOption {
	return func(r *SQLiteRecorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithTicks also stores tick events.
func WithTicks() SQLiteOption {
	return func(r *SQLiteRecorder) { r.ticks = true }
}

// NewSQLiteRecorder creates a new trace database at path, or at
// vrtos_trace_<xid>.sqlite3 when path is empty. An existing file is an error.
func NewSQLiteRecorder(path string, opts ...SQLiteOption) (*SQLiteRecorder, error) {
	if path == "" {
		path = "vrtos_trace_" + xid.New().String() + ".sqlite3"
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("trace database %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}

	r := &SQLiteRecorder{db: db, path: path, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	r.stmt, err = db.Prepare(`INSERT INTO events (tick, time, kind, task_id, priority, wake_tick, ran_ticks) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	atexit.Register(func() { _ = r.Close() })
	return r, nil
}

func (r *SQLiteRecorder) createTable() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS events
		(
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			tick      INTEGER NOT NULL,
			time      TEXT    NOT NULL,
			kind      TEXT    NOT NULL,
			task_id   INTEGER NOT NULL,
			priority  INTEGER NOT NULL,
			wake_tick INTEGER NOT NULL DEFAULT 0,
			ran_ticks INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS events_task_id_index ON events (task_id);
		CREATE INDEX IF NOT EXISTS events_tick_index ON events (tick);
	`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// Path is the database file.
func (r *SQLiteRecorder) Path() string { return r.path }

func (r *SQLiteRecorder) Record(ev sched.StatusEvent) {
	if ev.Kind == sched.StatusTick && !r.ticks {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = append(r.pending, ev)
	if len(r.pending) >= r.batchSize {
		r.flushBatchLocked()
	}
}

// flushBatchLocked flushes from the recording path. A failed batch is
// dropped so pending stays bounded; the first failure is kept for Close.
func (r *SQLiteRecorder) flushBatchLocked() {
	if err := r.flushLocked(); err != nil {
		if r.err == nil {
			r.err = err
		}
		r.pending = r.pending[:0]
	}
}

// Flush writes all buffered events.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *SQLiteRecorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin trace batch: %w", err)
	}
	stmt := tx.Stmt(r.stmt)
	for _, ev := range r.pending {
		_, err := stmt.Exec(
			ev.Tick,
			ev.Time.Format(time.RFC3339Nano),
			ev.Kind.String(),
			uint64(ev.TaskID),
			ev.Priority,
			ev.WakeTick,
			ev.RanTicks,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event at tick %d: %w", ev.Tick, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace batch: %w", err)
	}

	r.pending = r.pending[:0]
	return nil
}

// Close flushes what is left and closes the database. It reports the first
// batch that failed while recording, if any.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true

	r.flushBatchLocked()
	r.stmt.Close()
	if err := r.db.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// ReadEvents loads every event stored in the trace database at path, in
// recording order.
func ReadEvents(ctx context.Context, path string) ([]sched.StatusEvent, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT tick, time, kind, task_id, priority, wake_tick, ran_ticks FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []sched.StatusEvent
	for rows.Next() {
		var (
			ev     sched.StatusEvent
			ts     string
			kind   string
			taskID uint64
		)
		if err := rows.Scan(&ev.Tick, &ts, &kind, &taskID, &ev.Priority, &ev.WakeTick, &ev.RanTicks); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		k, ok := sched.ParseStatusKind(kind)
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		ev.Kind = k
		ev.TaskID = sched.TaskID(taskID)
		if ev.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
