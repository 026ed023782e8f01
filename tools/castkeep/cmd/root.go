package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/backup"
	"github.com/castkeep/castkeep/pkg/cost"
	"github.com/castkeep/castkeep/pkg/frames"
	"github.com/castkeep/castkeep/pkg/logging"
	"github.com/castkeep/castkeep/pkg/metrics"
	"github.com/castkeep/castkeep/pkg/network"
	"github.com/castkeep/castkeep/pkg/preserve"
	"github.com/castkeep/castkeep/pkg/storage/sqlite"
	"github.com/castkeep/castkeep/pkg/thread"
	"github.com/castkeep/castkeep/tools/castkeep/internal/cli"
	cliconfig "github.com/castkeep/castkeep/tools/castkeep/internal/config"
	"github.com/castkeep/castkeep/tools/castkeep/internal/update"
)

var (
	// cfg stores the application configuration.
	cfg *cliconfig.Config
	// console is the CLI console for output.
	console *cli.Console
	// fileLogger is the logger for writing logs to a file.
	fileLogger *log.Logger
	// database is the artifact store.
	database *sqlite.DB
	// hub is the client for the hub API and frame pages.
	hub *castkeep.HubClient
	// orchestrator drives backups.
	orchestrator *backup.Orchestrator
	// costGate prices backups before they run.
	costGate *cost.Gate
	// flagConfigPath is the path to the config file.
	flagConfigPath string
	// flagQuiet enables or disables quiet mode.
	flagQuiet bool
	// version is the version of the application. It is set at build time.
	version string
)

// SetVersion sets the version of the application.
func SetVersion(v string) {
	version = v
	if rootCmd != nil {
		rootCmd.Version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "castkeep [command|casts...]",
	Short: "A preservation tool for ephemeral casts.",
	Long: `A preservation tool for ephemeral casts.

Run 'castkeep [casts...]' to back up casts, or use a specific command.
For example:
  castkeep 0x1f2e3d4c
  castkeep bulk 0x1f2e3d4c 0x5b6a7988
  castkeep verify 0x1f2e3d4c`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Do not run hooks for completion, edit, or debug commands.
		isLightweightCmd := false
		lightweightCommands := []string{"completion", "edit", "debug", "update"}
		for c := cmd; c != nil; c = c.Parent() {
			for _, lwCmd := range lightweightCommands {
				if c.Name() == lwCmd {
					isLightweightCmd = true
					break
				}
			}
			if isLightweightCmd {
				break
			}
		}

		if cmd.Name() == "completion" {
			return nil
		}

		// The full setup for commands that need it.
		if !isLightweightCmd {
			if err := network.InitTransport(cfg.BindAddress); err != nil {
				return err
			}

			cleanLogs, _ := cmd.Flags().GetBool("clean-logs")
			var err error
			fileLogger, err = setupFileLogger(cleanLogs, cfg)
			if err != nil {
				return fmt.Errorf("failed to set up file logger: %w", err)
			}

			// If debug is enabled, write to both file and stderr.
			if val, _ := cmd.Flags().GetBool("debug"); val {
				mw := io.MultiWriter(fileLogger.Writer(), os.Stderr)
				fileLogger.SetOutput(mw)
				castkeep.Debug = true
			}

			// Initialize the global rate limiter for hub requests.
			castkeep.InitRateLimiter(context.Background())

			database, err = sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("error initializing database: %w", err)
			}

			if err := buildServices(); err != nil {
				return err
			}

			metrics.StartServer(cfg.MetricsAddr)
		}

		// Update check runs for commands that did the full setup.
		if !isLightweightCmd && cfg.CheckForUpdates {
			latestVersion, err := update.CheckForUpdate(version)
			if err != nil {
				// Non-fatal, just warn the user.
				console.Warn("Update check failed: %v", err)
			} else if latestVersion != "" {
				if cfg.AutoUpdate {
					console.Info("New version available (%s). Auto-updating...", latestVersion)
					if err := update.ApplyUpdate(console, version); err != nil {
						console.Error("Auto-update failed: %v", err)
					}
					os.Exit(0)
				} else {
					console.Warn("A new version of castkeep is available: %s. Run 'castkeep update' to upgrade.", console.Bold.Sprint(latestVersion))
				}
			}
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		castkeep.StopRateLimiter()
		if database != nil {
			return database.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Back up the given casts by default.
		return runBackup(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// buildServices wires the hub client, preserver, resolver, extractor and
// orchestrator from the loaded configuration.
func buildServices() error {
	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	hub = castkeep.Hub(cfg.HubURL, &http.Client{
		Timeout:   timeout,
		Transport: network.GetGlobalTransport(),
	})

	mediaStore, err := preserve.NewDiskStore(cfg.MediaPath)
	if err != nil {
		return fmt.Errorf("error initializing media store: %w", err)
	}
	preserver := preserve.New(mediaStore, &preserve.Options{
		BatchSize: cfg.MediaBatchSize,
		Retries:   cfg.Retries,
	})

	emitter := logging.NewJSONEmitter(fileLogger.Writer())
	orchestrator = backup.New(hub, preserver, thread.New(hub), frames.New(hub), database, emitter)
	orchestrator.BulkBatchSize = cfg.BulkBatchSize

	costGate = cost.New(hub, cost.StaticBalance(cfg.BalanceUSD), &cost.Rates{
		PerImageUSD:        cfg.PerImageUSD,
		PerVideoUSD:        cfg.PerVideoUSD,
		StorageOverheadUSD: cfg.StorageOverheadUSD,
		CreditsPerUSD:      cfg.CreditsPerUSD,
	})
	return nil
}

// init initializes the command line interface.
func init() {
	console = cli.New(false)

	cobra.OnInitialize(func() {
		if val, err := rootCmd.Flags().GetBool("quiet"); err == nil && val {
			flagQuiet = true
			console = cli.New(true)
		}

		var err error
		if val, err := rootCmd.Flags().GetString("config"); err == nil {
			flagConfigPath = val
		}

		cfg, err = cliconfig.Load(flagConfigPath)
		if err != nil {
			console.Error("Error loading config: %v", err)
			os.Exit(1)
		}

		applyFlagOverrides(rootCmd, cfg)
	})

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Persistent flags available to all subcommands.
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode, no console output except for errors")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug info to stderr and log file")
	rootCmd.PersistentFlags().Bool("clean-logs", false, "Redact sensitive info (cast ids, hashes, paths) from log files")

	rootCmd.PersistentFlags().StringP("dir", "d", "", "Directory to store preserved media (overrides config)")
	rootCmd.PersistentFlags().String("targets", "", "Path to a file with a list of cast hashes (overrides config)")
	rootCmd.PersistentFlags().String("hub", "", "Hub API base URL (overrides config)")
	rootCmd.PersistentFlags().IntP("batch", "b", 0, "Concurrent media downloads per batch (overrides config)")
	rootCmd.PersistentFlags().Int("bulk-batch", 0, "Concurrent backups per bulk batch (overrides config)")
	rootCmd.PersistentFlags().Float64("balance", -1, "Available balance in USD for cost gating (overrides config)")
	rootCmd.PersistentFlags().BoolP("force", "f", false, "Skip the affordability check before backing up")
	rootCmd.PersistentFlags().String("metrics", "", `Metrics listen address, e.g. ":9090" (overrides config)`)

	// Network flags
	rootCmd.PersistentFlags().String("bind", "", "Outbound IP address or interface to bind to (overrides config)")

	// Add subcommands.
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(updateCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
