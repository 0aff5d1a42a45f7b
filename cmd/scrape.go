package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairclaim/fos-cli/internal/config"
	"github.com/fairclaim/fos-cli/internal/extractor"
	"github.com/fairclaim/fos-cli/internal/fetcher"
	"github.com/fairclaim/fos-cli/internal/output"
	"github.com/fairclaim/fos-cli/internal/pipeline"
	"github.com/fairclaim/fos-cli/internal/walker"
)

var (
	scrapeCategories []string
	scrapeMaxPages   int
	scrapeOutputDir  string
	scrapeMinDelay   time.Duration
	scrapeSince      string
	scrapeUntil      string
	scrapeRecent     bool
	scrapeResume     string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Walk the decision archive and classify every decision found",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Flag overrides
		if len(scrapeCategories) > 0 {
			cfg.Source.Categories = scrapeCategories
		}
		if cmd.Flags().Changed("max-pages") {
			cfg.Source.MaxPagesPerCategory = scrapeMaxPages
		}
		if scrapeOutputDir != "" {
			cfg.Output.Dir = scrapeOutputDir
		}
		if cmd.Flags().Changed("min-delay") {
			cfg.Source.MinRequestDelay = scrapeMinDelay
		}
		if scrapeSince != "" {
			cfg.Source.DateFrom = scrapeSince
		}
		if scrapeUntil != "" {
			cfg.Source.DateTo = scrapeUntil
		}
		if scrapeRecent {
			now := time.Now()
			cfg.Source.DateFrom = now.AddDate(0, 0, -365).Format(config.DateLayout)
			cfg.Source.DateTo = now.Format(config.DateLayout)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		writer, err := output.NewWriter(cfg.Output.Dir)
		if err != nil {
			return eris.Wrap(err, "init output dir")
		}

		// One shared limiter paces every request the process makes,
		// regardless of which category worker issues it.
		limiter := rate.NewLimiter(rate.Every(cfg.Source.MinRequestDelay), 1)
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Fetch.Timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
			Limiter:    limiter,
		})

		// The breaker stops the run from grinding through its whole URL
		// queue when the archive goes down or starts blocking.
		guarded := fetcher.NewBreaker(f, cfg.Fetch.BreakerThreshold, cfg.Fetch.BreakerCooldown)

		w := walker.New(guarded, cfg.Source.BaseURL, cfg.Source.SearchPath).
			WithDateRange(cfg.Source.DateFrom, cfg.Source.DateTo)
		ex := extractor.New(nil)

		p := pipeline.New(cfg, guarded, w, ex, st, writer)
		var result *pipeline.RunResult
		if scrapeResume != "" {
			result, err = p.Resume(ctx, scrapeResume)
		} else {
			result, err = p.Run(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("scrape complete",
			zap.String("run_id", result.RunID),
			zap.Int("decisions", len(result.Decisions)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Stats)
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeCategories, "categories", nil, "product search slugs to walk (default: all configured)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "max listing pages per category")
	scrapeCmd.Flags().StringVar(&scrapeOutputDir, "output-dir", "", "directory for JSON output files")
	scrapeCmd.Flags().DurationVar(&scrapeMinDelay, "min-delay", 0, "minimum delay between HTTP requests")
	scrapeCmd.Flags().StringVar(&scrapeSince, "since", "", "only decisions published on or after this date (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVar(&scrapeUntil, "until", "", "only decisions published on or before this date (YYYY-MM-DD)")
	scrapeCmd.Flags().BoolVar(&scrapeRecent, "recent", false, "shorthand for a date range covering the last 12 months")
	scrapeCmd.Flags().StringVar(&scrapeResume, "resume", "", "continue an interrupted run by its run ID")
	rootCmd.AddCommand(scrapeCmd)
}
