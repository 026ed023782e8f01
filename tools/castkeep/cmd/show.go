package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castkeep/castkeep/pkg/storage"
)

// showCmd represents the show command.
var showCmd = &cobra.Command{
	Use:   "show [cast|preservation-id]",
	Short: "Print stored artifacts.",
	Long: `Prints a stored artifact as JSON. The target may be a cast hash
(0x...), which resolves to the latest artifact for that cast, or a
preservation id.

With --author or --recent, lists matching artifact records instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		recent, _ := cmd.Flags().GetInt("recent")

		switch {
		case author != "":
			records, err := database.ListByAuthor(author)
			if err != nil {
				return fmt.Errorf("failed to list artifacts for author '%s': %w", author, err)
			}
			return printRecords(records)
		case recent > 0:
			records, err := database.ListRecent(recent)
			if err != nil {
				return fmt.Errorf("failed to list recent artifacts: %w", err)
			}
			return printRecords(records)
		}

		if len(args) != 1 {
			return fmt.Errorf("pass one cast hash or preservation id, or use --author/--recent")
		}
		artifact, err := loadArtifact(args[0])
		if err != nil {
			return fmt.Errorf("could not load artifact for '%s': %w", args[0], err)
		}
		buffer, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal artifact: %w", err)
		}
		fmt.Println(string(buffer))
		return nil
	},
}

// printRecords prints one line per artifact record.
func printRecords(records []storage.ArtifactRecord) error {
	if len(records) == 0 {
		console.Warn("No artifacts found.")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  %s  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.PreservationID, rec.CastID, rec.AuthorID)
	}
	return nil
}

// init initializes the show command flags.
func init() {
	showCmd.Flags().String("author", "", "List artifact records for this author id")
	showCmd.Flags().Int("recent", 0, "List the N most recent artifact records")
}
