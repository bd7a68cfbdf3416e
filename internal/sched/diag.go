package sched

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tebeka/atexit"
)

// Severity of a diagnostic record.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is what the scheduler reports on allocation failures and on the
// fatal halt path.
type Diagnostic struct {
	Severity Severity
	Message  string
	Tick     uint64
	TaskID   TaskID
	HasTask  bool
}

// Sink receives diagnostic records. Emit may be called with the scheduler
// lock held and must not call back into the scheduler.
type Sink interface {
	Emit(d Diagnostic)
}

// LogSink writes diagnostics to a slog.Logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Emit(d Diagnostic) {
	level := slog.LevelInfo
	switch d.Severity {
	case SeverityWarn:
		level = slog.LevelWarn
	case SeverityError, SeverityFatal:
		level = slog.LevelError
	}

	attrs := []any{"severity", d.Severity.String(), "tick", d.Tick}
	if d.HasTask {
		attrs = append(attrs, "task_id", uint64(d.TaskID))
	}
	s.log.Log(context.Background(), level, d.Message, attrs...)
}

// Halter stops the system after a fatal diagnostic. If Halt returns, the
// scheduler is already shut down and the halting task never resumes.
type Halter interface {
	Halt(d Diagnostic)
}

// HaltFunc adapts a function to Halter.
type HaltFunc func(d Diagnostic)

func (f HaltFunc) Halt(d Diagnostic) { f(d) }

// exitHalter runs the registered exit handlers (trace flushes) and exits.
type exitHalter struct{}

func (exitHalter) Halt(Diagnostic) { atexit.Exit(1) }
