package cli

import (
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail and Sheets access and store the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Auth(cmd.Context())
	},
}

var reauthCmd = &cobra.Command{
	Use:   "reauth",
	Short: "Discard the stored token and authorize again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Reauth(cmd.Context())
	},
}
