package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	castkeep "github.com/castkeep/castkeep/internal"
)

// backupCmd represents the backup command.
var backupCmd = &cobra.Command{
	Use:   "backup [casts...]",
	Short: "Back up casts into durable artifacts.",
	Long: `Backs up each cast: fetches the post, preserves its media, conversation
and frames, verifies the result and persists it as an artifact.`,
	RunE: runBackup,
}

// runBackup backs up every target cast, one at a time.
func runBackup(cmd *cobra.Command, args []string) error {
	targets := getTargets(cfg, args)
	if len(targets) == 0 {
		return fmt.Errorf("no casts to back up: pass cast hashes or fill the targets file")
	}
	force, _ := cmd.Flags().GetBool("force")
	ctx := cmd.Context()

	for _, castID := range targets {
		if !force {
			est, err := costGate.Estimate(ctx, castID)
			if err != nil {
				console.Error("Could not price '%s': %v", castID, err)
				continue
			}
			if !est.Affordable {
				console.Error("Cannot afford backup of '%s' ($%.4f, %d credits). Set balance_usd or use --force.", castID, est.TotalUSD, est.CreditsNeeded)
				continue
			}
		}

		console.StartProgress(fmt.Sprintf("Backing up %s...", castID))
		artifact, err := orchestrator.CreateBackup(ctx, castID)
		console.StopProgress()
		if err != nil {
			if errors.Is(err, castkeep.ErrDiskSpace) {
				if artifact != nil {
					console.Warn("Backed up %s as %s (%s), but the disk is full.", castID, artifact.PreservationID, summarize(artifact))
				}
				console.Error("Out of disk space. Halting.")
				return err
			}
			console.Error("Failed to back up '%s': %v", castID, err)
			continue
		}
		console.Success("Backed up %s as %s (%s)", castID, artifact.PreservationID, summarize(artifact))
	}
	return nil
}

// summarize renders a one-line completeness summary for an artifact.
func summarize(artifact *castkeep.BackupArtifact) string {
	c := artifact.Completeness
	parts := []struct {
		name string
		ok   bool
	}{
		{"text", c.Text},
		{"media", c.Media},
		{"thread", c.Thread},
		{"frames", c.Frames},
		{"profiles", c.Profiles},
	}
	out := ""
	for _, p := range parts {
		if !p.ok {
			continue
		}
		if out != "" {
			out += "+"
		}
		out += p.name
	}
	if out == "" {
		return "empty"
	}
	return out
}
