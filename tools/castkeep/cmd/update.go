package cmd

import (
	"github.com/spf13/cobra"

	"github.com/castkeep/castkeep/tools/castkeep/internal/update"
)

// updateCmd represents the update command.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update castkeep to the latest version.",
	Long: `Checks for the latest version of castkeep on GitHub and, if a newer
version is found, downloads and installs it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ApplyUpdate contains all necessary logic, including checking if already latest.
		return update.ApplyUpdate(console, version)
	},
}
