package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "report-analyst",
	Short: "Extract metrics from marketing report PDFs and write analysis",
	Long:  "Reads a PDF performance report, extracts a metrics table through an LLM with repair and fallback parsing, and writes a UK English summary that can be refined.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate(cmd.Name())
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
