package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/backup"
	"github.com/castkeep/castkeep/pkg/pool"
)

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify [casts|preservation-ids...]",
	Short: "Verify the integrity of stored artifacts.",
	Long: `Recomputes each artifact's content hash and cross-checks its
completeness record. Targets may be cast hashes (0x...), which resolve to
the latest artifact for that cast, or preservation ids.

With --author, verifies every artifact of the given author instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		if author != "" {
			return verifyAuthor(author)
		}
		if len(args) == 0 {
			return fmt.Errorf("pass cast hashes or preservation ids, or use --author")
		}

		failed := 0
		for _, target := range args {
			artifact, err := loadArtifact(target)
			if err != nil {
				console.Error("Could not load artifact for '%s': %v", target, err)
				failed++
				continue
			}
			if !reportVerification(artifact) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d artifact(s) failed verification", failed)
		}
		return nil
	},
}

// verifyAuthor verifies every artifact of one author on a small worker pool.
func verifyAuthor(authorID string) error {
	records, err := database.ListByAuthor(authorID)
	if err != nil {
		return fmt.Errorf("failed to list artifacts for author '%s': %w", authorID, err)
	}
	if len(records) == 0 {
		console.Warn("No artifacts found for author '%s'.", authorID)
		return nil
	}

	var mu sync.Mutex
	failed := 0
	workers := pool.New(4, len(records))
	for _, record := range records {
		preservationID := record.PreservationID
		workers.Submit(func() {
			artifact, err := database.Retrieve(preservationID)
			ok := err == nil && reportVerification(artifact)
			if err != nil {
				console.Error("Could not load artifact '%s': %v", preservationID, err)
			}
			if !ok {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		})
	}
	workers.Stop()

	if failed > 0 {
		return fmt.Errorf("%d of %d artifact(s) failed verification", failed, len(records))
	}
	console.Success("All %d artifact(s) for author '%s' verified.", len(records), authorID)
	return nil
}

// loadArtifact resolves a target to an artifact: cast hashes load the
// latest artifact for the cast, anything else is a preservation id.
func loadArtifact(target string) (*castkeep.BackupArtifact, error) {
	if strings.HasPrefix(target, "0x") {
		return database.Latest(target)
	}
	return database.Retrieve(target)
}

// reportVerification prints the verification outcome for one artifact and
// reports whether it passed.
func reportVerification(artifact *castkeep.BackupArtifact) bool {
	result := backup.Verify(artifact)
	if result.Valid {
		console.Success("%s (%s): intact", artifact.PreservationID, artifact.Post.ID)
		return true
	}
	console.Error("%s (%s): FAILED", artifact.PreservationID, artifact.Post.ID)
	for _, issue := range result.Issues {
		console.Info("  - %s", issue)
	}
	return false
}

// init initializes the verify command flags.
func init() {
	verifyCmd.Flags().String("author", "", "Verify every artifact of this author id")
}
