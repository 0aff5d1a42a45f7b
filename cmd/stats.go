package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fairclaim/fos-cli/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats <run-id>",
	Short: "Recompute and print statistics for a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "get run")
		}

		decisions, err := st.ListDecisions(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "list decisions")
		}

		stats := pipeline.BuildStatistics(decisions, 0, 0)
		// Skip and failure counts are only known to the original run.
		if run.Stats != nil {
			stats.Skipped = run.Stats.Skipped
			stats.FetchFailures = run.Stats.FetchFailures
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
