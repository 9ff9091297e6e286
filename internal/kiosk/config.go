// Package kiosk implements the unattended display client: scheduled
// configuration refresh with a local snapshot cache, a device heartbeat and
// an offline-first cache proxy for static assets.
package kiosk

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the kiosk agent's YAML configuration file.
type Config struct {
	// APIURL is the admin server base URL, e.g. "https://api.example.com".
	APIURL string `yaml:"api_url"`

	// DisplayID addresses the kiosk; it is resolved to a pharmacy id at
	// boot. PharmacyID may be set directly instead.
	DisplayID  string `yaml:"display_id"`
	PharmacyID string `yaml:"pharmacy_id"`

	DeviceID        string `yaml:"device_id"`
	SerialNumber    string `yaml:"serial_number"`
	FirmwareVersion string `yaml:"firmware_version"`

	RefreshIntervalSeconds   int `yaml:"refresh_interval_seconds"`
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`

	SnapshotDBPath string `yaml:"snapshot_db_path"`
	AssetCacheDir  string `yaml:"asset_cache_dir"`
	ListenAddr     string `yaml:"listen_addr"`

	// LookupURL is the on-duty pharmacy lookup site used by the scraped
	// content mode.
	LookupURL string `yaml:"lookup_url"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates the agent configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("config: api_url is required")
	}
	if cfg.DisplayID == "" && cfg.PharmacyID == "" {
		return nil, fmt.Errorf("config: display_id or pharmacy_id is required")
	}

	if cfg.RefreshIntervalSeconds <= 0 {
		cfg.RefreshIntervalSeconds = 30
	}
	if cfg.HeartbeatIntervalSeconds <= 0 {
		cfg.HeartbeatIntervalSeconds = 300
	}
	if cfg.SnapshotDBPath == "" {
		cfg.SnapshotDBPath = "kiosk.db"
	}
	if cfg.AssetCacheDir == "" {
		cfg.AssetCacheDir = "asset-cache"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8090"
	}
	if cfg.LookupURL == "" {
		cfg.LookupURL = "https://www.farmaciediturno.org"
	}

	return &cfg, nil
}

// RefreshInterval returns the refresh cadence as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat cadence as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
