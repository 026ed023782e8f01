package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/castkeep/castkeep/pkg/config"
)

const AppName = "castkeep"

// Config extends the core config with CLI-specific options.
type Config struct {
	config.Config   `koanf:",squash"`
	TargetsFile     string `koanf:"targets_file"`
	DatabasePath    string `koanf:"database_path"`
	Editor          string `koanf:"editor"`
	CheckForUpdates bool   `koanf:"check_for_updates"`
	AutoUpdate      bool   `koanf:"auto_update"`
}

// Default returns the default CLI configuration.
func Default() (*Config, error) {
	coreCfg := config.Default()
	dbPath, err := xdg.DataFile(filepath.Join(AppName, "artifacts.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default db path: %w", err)
	}
	targetsPath, err := xdg.DataFile(filepath.Join(AppName, "targets.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default targets path: %w", err)
	}

	return &Config{
		Config:          *coreCfg,
		DatabasePath:    dbPath,
		TargetsFile:     targetsPath,
		Editor:          "", // Default editor is determined in the 'edit' command logic
		CheckForUpdates: true,
		AutoUpdate:      false,
	}, nil
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	defCfg, err := Default()
	if err != nil {
		return nil, err
	}
	cfgPath := path
	if cfgPath == "" {
		cfgPath, err = xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := createDefaultConfig(cfgPath, defCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg := defCfg
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// If the user's config specifies an empty string for targets_file,
	// fall back to the default path to avoid errors.
	if cfg.TargetsFile == "" {
		cfg.TargetsFile = defCfg.TargetsFile
	}

	if _, err := os.Stat(cfg.TargetsFile); errors.Is(err, os.ErrNotExist) {
		if err := createDefaultTargetsFile(cfg.TargetsFile); err != nil {
			// Not a fatal error, just warn the user.
			fmt.Fprintf(os.Stderr, "Warning: failed to create default targets file: %v\n", err)
		}
	}
	return cfg, nil
}

// createDefaultConfig creates a default configuration file.
func createDefaultConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := fmt.Sprintf(`# castkeep CLI configuration file.
# Base URL of the hub API. Leave empty to use the built-in default.
hub_url: "%s"
# Path where preserved media blobs are stored, addressed by content hash.
media_path: "%s"
# Path to a file containing a list of cast hashes to back up, one per line.
# This file is used if no casts are provided on the command line.
targets_file: "%s"
# Path to the SQLite database holding backup artifacts.
database_path: "%s"
# Concurrent media downloads per batch.
media_batch_size: %d
# Concurrent backups per batch in bulk mode.
bulk_batch_size: %d
# HTTP timeout for hub and media requests (Go duration, e.g. "30s").
request_timeout: "%s"
# Retries per media download.
retries: %d
# Available balance in USD for cost gating. Negative means unknown, and
# unknown balance makes every estimate unaffordable.
balance_usd: %g
# Preservation cost per image embed, in USD.
per_image_usd: %g
# Preservation cost per video or gif embed, in USD.
per_video_usd: %g
# Flat storage cost per backup, in USD.
storage_overhead_usd: %g
# Credits per USD, used to express estimates in credits.
credits_per_usd: %g
# Listen address for the Prometheus metrics endpoint, e.g. ":9090".
# Leave empty to disable.
metrics_addr: "%s"
# Outbound IP address or interface name to bind requests to.
bind_address: "%s"
# Editor to use for the 'edit' command. If empty, it will check $EDITOR, then common editors.
editor: "%s"
# Check GitHub for a newer release on startup.
check_for_updates: %t
# Apply updates automatically when found.
auto_update: %t
`, cfg.HubURL, cfg.MediaPath, cfg.TargetsFile, cfg.DatabasePath,
		cfg.MediaBatchSize, cfg.BulkBatchSize, cfg.RequestTimeout, cfg.Retries,
		cfg.BalanceUSD, cfg.PerImageUSD, cfg.PerVideoUSD, cfg.StorageOverheadUSD, cfg.CreditsPerUSD,
		cfg.MetricsAddr, cfg.BindAddress, cfg.Editor, cfg.CheckForUpdates, cfg.AutoUpdate)
	content = strings.ReplaceAll(content, "\\", "/")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}

// createDefaultTargetsFile creates a default targets file.
func createDefaultTargetsFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create targets directory: %w", err)
	}
	content := `# Add cast hashes here, one per line.
# Lines starting with # are ignored.
#
# Example:
# 0x1f2e3d4c5b6a79880f1e2d3c4b5a6978
`
	return os.WriteFile(path, []byte(content), 0600)
}
