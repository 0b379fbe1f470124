package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pyautoupdate/pyautoupdate/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Version())
	},
}
