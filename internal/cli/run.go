package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vrtos/internal/job"
	"vrtos/internal/logging"
	"vrtos/internal/monitor"
	"vrtos/internal/sched"
	"vrtos/internal/trace"
)

type runOptions struct {
	workload    string
	step        bool
	ticks       uint64
	audit       bool
	traceCSV    string
	traceSQLite string
	console     bool
	monitorAddr string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the scheduler and run a workload",
		Long: `Boots the scheduler, spawns the tasks of the workload file (the blinker
when none is given) and runs until the tick limit, an interrupt or a fatal
halt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScheduler(logging.WithLogger(ctx, logger), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workload, "workload", "w", "", "Workload file (HCL)")
	cmd.Flags().BoolVar(&opts.step, "step", false, "Simulated timer: ticks advance as fast as tasks burn them")
	cmd.Flags().Uint64Var(&opts.ticks, "ticks", 0, "Stop after this many ticks (overrides stop_after_ticks)")
	cmd.Flags().BoolVar(&opts.audit, "audit", false, "Check queue consistency at every scheduling decision")
	cmd.Flags().StringVar(&opts.traceCSV, "trace-csv", "", "Write non-tick events to this CSV file")
	cmd.Flags().StringVar(&opts.traceSQLite, "trace-sqlite", "", "Write events to this new SQLite database")
	cmd.Flags().BoolVar(&opts.console, "console", false, "Print events to stdout")
	cmd.Flags().StringVar(&opts.monitorAddr, "monitor-addr", "", "Serve the monitor API on this address (e.g. :8080)")

	return cmd
}

func runScheduler(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	cfg, err := sched.Load(flagConfig)
	if err != nil {
		return err
	}
	if opts.ticks > 0 {
		cfg.StopAfterTicks = opts.ticks
	}
	if opts.audit {
		cfg.Audit = true
	}

	schedOpts := []sched.Option{sched.WithLogger(logger)}
	if opts.step {
		schedOpts = append(schedOpts, sched.WithTimer(sched.NewStepTimer()))
	}
	if opts.console {
		schedOpts = append(schedOpts, sched.WithRecorder(trace.NewConsoleRecorder(cmd.OutOrStdout())))
	}
	if opts.traceCSV != "" {
		r, err := trace.NewCSVRecorder(opts.traceCSV)
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, sched.WithRecorder(r))
		logger.Info("tracing to csv", "path", r.Path())
	}
	if opts.traceSQLite != "" {
		r, err := trace.NewSQLiteRecorder(opts.traceSQLite)
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, sched.WithRecorder(r))
		logger.Info("tracing to sqlite", "path", r.Path())
	}

	s, err := sched.New(cfg, schedOpts...)
	if err != nil {
		return err
	}

	w, err := job.LoadWorkload(ctx, opts.workload)
	if err != nil {
		return err
	}
	if _, err := w.Spawn(s, cfg); err != nil {
		return err
	}

	if opts.monitorAddr != "" {
		if _, err := monitor.New(s, logger).StartServer(ctx, opts.monitorAddr); err != nil {
			return err
		}
	}

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}
