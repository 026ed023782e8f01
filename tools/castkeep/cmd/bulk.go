package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// bulkCmd represents the bulk command.
var bulkCmd = &cobra.Command{
	Use:   "bulk [casts...]",
	Short: "Back up many casts concurrently.",
	Long: `Backs up casts in concurrent batches. Failed casts are skipped and
reported; the run halts only when the disk fills up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets := getTargets(cfg, args)
		if len(targets) == 0 {
			return fmt.Errorf("no casts to back up: pass cast hashes or fill the targets file")
		}
		force, _ := cmd.Flags().GetBool("force")
		ctx := cmd.Context()

		if !force {
			affordable := targets[:0]
			for _, castID := range targets {
				est, err := costGate.Estimate(ctx, castID)
				if err != nil {
					console.Warn("Could not price '%s': %v. Skipping.", castID, err)
					continue
				}
				if !est.Affordable {
					console.Warn("Cannot afford backup of '%s' ($%.4f). Skipping.", castID, est.TotalUSD)
					continue
				}
				affordable = append(affordable, castID)
			}
			targets = affordable
			if len(targets) == 0 {
				return fmt.Errorf("no affordable casts to back up")
			}
		}

		console.StartProgress(fmt.Sprintf("Backing up %d casts...", len(targets)))
		artifacts, err := orchestrator.CreateBulkBackup(ctx, targets)
		console.StopProgress()

		for _, artifact := range artifacts {
			console.Success("Backed up %s as %s (%s)", artifact.Post.ID, artifact.PreservationID, summarize(artifact))
		}
		if failed := len(targets) - len(artifacts); failed > 0 {
			console.Warn("%d of %d casts could not be backed up.", failed, len(targets))
		}
		return err
	},
}
