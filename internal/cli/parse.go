package cli

import (
	"github.com/spf13/cobra"

	"github.com/dvloznov/inbox-ledger/internal/app"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE.eml...",
	Short: "Extract transactions from saved emails (local paths or gs:// objects)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Parse(cmd.Context(), app.ParseOptions{
			Paths: args,
			Out:   cmd.OutOrStdout(),
		})
	},
}
