package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tCATEGORIES\tDECISIONS\tCREATED")
		for _, r := range runs {
			decisions := "-"
			if r.Stats != nil {
				decisions = fmt.Sprintf("%d", r.Stats.TotalProcessed)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.Status, len(r.Categories), decisions,
				r.CreatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
