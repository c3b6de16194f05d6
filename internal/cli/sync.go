package cli

import (
	"github.com/spf13/cobra"

	"github.com/dvloznov/inbox-ledger/internal/app"
)

var (
	syncMonth  string
	syncAfter  string
	syncBefore string
	syncSender string
	syncSink   string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch alert emails and append their transactions to the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SyncOptions{
			Month:  syncMonth,
			After:  syncAfter,
			Before: syncBefore,
			Sender: syncSender,
			Sink:   syncSink,
			DryRun: syncDryRun,
		}

		report, err := getApp().Sync(cmd.Context(), opts)
		if report.RunID != "" {
			if printErr := app.PrintReport(cmd.OutOrStdout(), report); printErr != nil && err == nil {
				err = printErr
			}
		}
		return err
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncMonth, "month", "", "Calendar month to sync (YYYY-MM, defaults to the current month)")
	syncCmd.Flags().StringVar(&syncAfter, "after", "", "Only messages on or after this day (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncBefore, "before", "", "Only messages before this day (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncSender, "sender", "", "Sender address to search for (defaults to config)")
	syncCmd.Flags().StringVar(&syncSink, "sink", "", "Ledger sink: sheets, bigquery, postgres, notion or csv (defaults to config)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Parse messages without writing to the ledger")
}
