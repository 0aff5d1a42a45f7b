package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairclaim/fos-cli/internal/extractor"
	"github.com/fairclaim/fos-cli/internal/model"
	"github.com/fairclaim/fos-cli/internal/output"
	"github.com/fairclaim/fos-cli/internal/pipeline"
)

var processOutputDir string

// processCmd re-runs classification over the raw text already stored
// for a run. Useful after pattern changes: no network traffic, same
// output files.
var processCmd = &cobra.Command{
	Use:   "process <run-id>",
	Short: "Re-classify a stored run's decisions without re-fetching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		if processOutputDir != "" {
			cfg.Output.Dir = processOutputDir
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		stored, err := st.ListDecisions(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "list decisions")
		}
		if len(stored) == 0 {
			fmt.Fprintf(os.Stderr, "No decisions stored for run %s.\n", runID)
			return nil
		}

		ex := extractor.New(nil)
		decisions := make([]model.ClassifiedDecision, 0, len(stored))
		skipped := 0
		for _, old := range stored {
			raw := &model.RawDocument{
				Reference:   old.Reference,
				URL:         old.URL,
				Date:        old.Date,
				ProductType: old.ProductType,
				Body:        old.FullText,
			}
			d := ex.Extract(raw)
			if d == nil {
				skipped++
				continue
			}
			decisions = append(decisions, *d)
			if err := st.SaveDecision(ctx, runID, d); err != nil {
				zap.L().Warn("failed to persist reclassified decision",
					zap.String("reference", d.Reference),
					zap.Error(err),
				)
			}
		}

		writer, err := output.NewWriter(cfg.Output.Dir)
		if err != nil {
			return eris.Wrap(err, "init output dir")
		}
		if err := writer.WriteCategories(decisions); err != nil {
			return err
		}
		if err := writer.WriteUpheld(decisions); err != nil {
			return err
		}
		stats := pipeline.BuildStatistics(decisions, skipped, 0)
		if err := writer.WriteStatistics(stats); err != nil {
			return err
		}
		if err := st.CompleteRun(ctx, runID, stats); err != nil {
			zap.L().Warn("failed to update run stats", zap.Error(err))
		}

		zap.L().Info("reprocess complete",
			zap.String("run_id", runID),
			zap.Int("decisions", len(decisions)),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processOutputDir, "output-dir", "", "directory for JSON output files")
	rootCmd.AddCommand(processCmd)
}
