package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// estimateCmd represents the estimate command.
var estimateCmd = &cobra.Command{
	Use:   "estimate [casts...]",
	Short: "Price the backup of casts without running it.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, castID := range args {
			est, err := costGate.Estimate(cmd.Context(), castID)
			if err != nil {
				console.Error("Could not price '%s': %v", castID, err)
				continue
			}
			verdict := console.Red.Sprint("not affordable")
			if est.Affordable {
				verdict = console.Green.Sprint("affordable")
			}
			balance := "unknown"
			if est.BalanceUSD != nil {
				balance = fmt.Sprintf("$%.4f", *est.BalanceUSD)
			}
			console.Info("%s: media $%.4f + storage $%.4f = $%.4f (%d credits), balance %s: %s",
				castID, est.MediaCostUSD, est.StorageCostUSD, est.TotalUSD, est.CreditsNeeded, balance, verdict)
		}
		return nil
	},
}
