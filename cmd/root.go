package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairclaim/fos-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fos-cli",
	Short: "Ombudsman decision ingestion and classification pipeline",
	Long:  "Walks the Financial Ombudsman Service decision archive, fetches decision documents under rate limits, and classifies them into structured records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
