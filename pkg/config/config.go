package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Config struct holds the core, application-agnostic configuration.
type Config struct {
	HubURL             string  `koanf:"hub_url"`              // Base URL of the hub API.
	MediaPath          string  `koanf:"media_path"`           // Path to store preserved media blobs.
	MediaBatchSize     int     `koanf:"media_batch_size"`     // Concurrent downloads per media batch.
	BulkBatchSize      int     `koanf:"bulk_batch_size"`      // Concurrent backups per bulk batch.
	RequestTimeout     string  `koanf:"request_timeout"`      // HTTP timeout for hub and media requests (Go duration).
	Retries            int     `koanf:"retries"`              // Retries per media download.
	BalanceUSD         float64 `koanf:"balance_usd"`          // Available balance in USD. Negative means unknown.
	PerImageUSD        float64 `koanf:"per_image_usd"`        // Preservation cost per image embed.
	PerVideoUSD        float64 `koanf:"per_video_usd"`        // Preservation cost per video or gif embed.
	StorageOverheadUSD float64 `koanf:"storage_overhead_usd"` // Flat storage cost per backup.
	CreditsPerUSD      float64 `koanf:"credits_per_usd"`      // Credit conversion rate for estimates.
	MetricsAddr        string  `koanf:"metrics_addr"`         // Listen address for the metrics endpoint. Empty disables it.
	BindAddress        string  `koanf:"bind_address"`         // Local IP or interface name to bind outgoing requests to.
}

// Default returns the default core configuration.
func Default() *Config {
	var defaultPath string
	if xdg.DataHome != "" {
		defaultPath = filepath.Join(xdg.DataHome, "castkeep", "media")
	} else {
		// Fallback for systems without a configured XDG data directory.
		defaultPath = filepath.Join("castkeep", "media")
	}

	return &Config{
		HubURL:             "",
		MediaPath:          defaultPath,
		MediaBatchSize:     3,
		BulkBatchSize:      3,
		RequestTimeout:     "30s",
		Retries:            2,
		BalanceUSD:         -1,
		PerImageUSD:        0.002,
		PerVideoUSD:        0.01,
		StorageOverheadUSD: 0.005,
		CreditsPerUSD:      1000,
		MetricsAddr:        "",
		BindAddress:        "",
	}
}
