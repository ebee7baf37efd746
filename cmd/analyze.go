package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/report-analyst/internal/export"
)

var (
	analyzeRefine  []string
	analyzeCSV     string
	analyzeXLSX    string
	analyzeHistory string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <report.pdf>",
	Short: "Extract metrics and write an analysis of a report",
	Long:  "Extracts the metrics table, writes a summary with recommendations, then applies each --refine instruction in order to the latest version.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		sess, err := openReport(ctx, args[0])
		if err != nil {
			return err
		}
		defer sess.Close() //nolint:errcheck

		result, err := extractWithRetry(ctx, sess, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n", result.Table()) //nolint:errcheck
		if err := writeExports(result, analyzeCSV, analyzeXLSX); err != nil {
			return err
		}

		if _, err := sess.GenerateAnalysis(ctx); err != nil {
			return err
		}
		for _, instructions := range analyzeRefine {
			if _, err := sess.RefineLatest(ctx, instructions); err != nil {
				return err
			}
		}

		history := sess.History()
		if err := export.WriteHistory(out, history); err != nil {
			return err
		}

		if analyzeHistory != "" {
			f, err := os.Create(analyzeHistory)
			if err != nil {
				return eris.Wrapf(err, "create %s", analyzeHistory)
			}
			defer f.Close() //nolint:errcheck
			if err := export.WriteHistory(f, history); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringArrayVar(&analyzeRefine, "refine", nil, "refinement instruction, applied in order (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "write metrics to this CSV file")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "write metrics to this XLSX file")
	analyzeCmd.Flags().StringVar(&analyzeHistory, "history", "", "write every analysis version to this file")
	rootCmd.AddCommand(analyzeCmd)
}
