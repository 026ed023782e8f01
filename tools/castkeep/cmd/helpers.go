package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/castkeep/castkeep/pkg/logging"
	cliconfig "github.com/castkeep/castkeep/tools/castkeep/internal/config"
)

// applyFlagOverrides applies command-line flag overrides to the configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *cliconfig.Config) {
	if cmd.Flag("dir").Changed {
		cfg.MediaPath, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flag("targets").Changed {
		cfg.TargetsFile, _ = cmd.Flags().GetString("targets")
	}
	if cmd.Flag("hub").Changed {
		cfg.HubURL, _ = cmd.Flags().GetString("hub")
	}
	if cmd.Flag("batch").Changed {
		if val, _ := cmd.Flags().GetInt("batch"); val > 0 {
			cfg.MediaBatchSize = val
		}
	}
	if cmd.Flag("bulk-batch").Changed {
		if val, _ := cmd.Flags().GetInt("bulk-batch"); val > 0 {
			cfg.BulkBatchSize = val
		}
	}
	if cmd.Flag("balance").Changed {
		cfg.BalanceUSD, _ = cmd.Flags().GetFloat64("balance")
	}
	if cmd.Flag("metrics").Changed {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics")
	}
	if cmd.Flag("bind").Changed {
		cfg.BindAddress, _ = cmd.Flags().GetString("bind")
	}
}

// getTargets retrieves cast hashes from command-line arguments or the
// targets file.
func getTargets(cfg *cliconfig.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	if cfg.TargetsFile == "" {
		return nil
	}
	file, err := os.Open(cfg.TargetsFile)
	if err != nil {
		console.Warn("Could not open targets file '%s': %v", cfg.TargetsFile, err)
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			console.Warn("Could not close targets file '%s': %v", cfg.TargetsFile, err)
		}
	}()

	var fileTargets []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			fileTargets = append(fileTargets, line)
		}
	}
	if err := scanner.Err(); err != nil {
		console.Warn("Error reading targets file '%s': %v", cfg.TargetsFile, err)
	}
	return fileTargets
}

// setupFileLogger sets up a file logger to log application events.
func setupFileLogger(clean bool, cfg *cliconfig.Config) (*log.Logger, error) {
	logPath, err := xdg.StateFile(filepath.Join(cliconfig.AppName, "app.log"))
	if err != nil {
		return nil, fmt.Errorf("could not get log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0750); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640) // #nosec G304 G302
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	var writer io.Writer = f
	if clean {
		writer = logging.NewRedactingWriter(f, cfg.MediaPath, nil)
	}

	return log.New(writer, "", log.LstdFlags), nil
}
