package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vrtos/internal/logging"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagConfig    string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the vrtos CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vrtos",
		Short: "vrtos: a tick-driven priority scheduler",
		Long: `vrtos runs a workload of cooperative tasks on a preemptive,
tick-driven priority scheduler with a stack arena and a timer wheel.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			format, err := logging.ParseFormat(flagLogFormat)
			if err != nil {
				return err
			}
			logger = logging.New(logging.Options{
				Level:  level,
				Format: format,
				Writer: cmd.ErrOrStderr(),
			})
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Scheduler config file (YAML)")

	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newReplayCmd(),
	)

	return root
}
