package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	castkeep "github.com/castkeep/castkeep/internal"
)

// debugCmd represents the base command for debugging tools.
var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging tools for castkeep.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// debugCastCmd dumps the raw JSON response for a cast.
var debugCastCmd = &cobra.Command{
	Use:   "cast [hash]",
	Short: "Dump the raw JSON response of the hub for a cast.",
	Long: `This command is for debugging. It fetches a cast and prints the raw,
unparsed JSON response directly to stdout. Useful for inspecting the data
structure returned by the hub.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		console.Info("Fetching raw cast %s...", args[0])

		// A local client: debug runs without the full setup.
		hub := castkeep.Hub(cfg.HubURL, nil)
		responseBytes, err := hub.Raw(cmd.Context(), "cast", map[string]string{"hash": args[0]})
		if err != nil {
			return fmt.Errorf("failed to get raw cast %s: %w", args[0], err)
		}

		fmt.Println(string(responseBytes))
		return nil
	},
}

// debugFrameCmd fetches a URL and prints the parsed frame metadata.
var debugFrameCmd = &cobra.Command{
	Use:   "frame [url]",
	Short: "Fetch a URL and print its parsed frame metadata.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		console.Info("Fetching frame %s...", args[0])

		hub := castkeep.Hub(cfg.HubURL, nil)
		meta, err := hub.FetchFrame(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch frame %s: %w", args[0], err)
		}

		buffer, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal frame metadata: %w", err)
		}
		fmt.Println(string(buffer))
		return nil
	},
}

// init initializes the debug command and its subcommands.
func init() {
	debugCmd.AddCommand(debugCastCmd)
	debugCmd.AddCommand(debugFrameCmd)
}
