package cli

import (
	"github.com/spf13/cobra"

	"vrtos/internal/trace"
)

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <trace.sqlite3>",
		Short: "Print the events stored in a SQLite trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := trace.ReadEvents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			console := trace.NewConsoleRecorder(cmd.OutOrStdout())
			for _, ev := range events {
				console.Record(ev)
			}
			logger.Debug("replayed trace", "path", args[0], "events", len(events))
			return console.Close()
		},
	}
}
