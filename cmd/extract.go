package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	extractCSV  string
	extractXLSX string
)

var extractCmd = &cobra.Command{
	Use:   "extract <report.pdf>",
	Short: "Extract the metrics table from a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := openReport(ctx, args[0])
		if err != nil {
			return err
		}
		defer sess.Close() //nolint:errcheck

		result, err := extractWithRetry(ctx, sess, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), result.Table()) //nolint:errcheck
		return writeExports(result, extractCSV, extractXLSX)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCSV, "csv", "", "write metrics to this CSV file")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "write metrics to this XLSX file")
	rootCmd.AddCommand(extractCmd)
}
