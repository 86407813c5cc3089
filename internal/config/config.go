package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SyncConfig holds all sync-related configuration
type SyncConfig struct {
	// Enabled controls whether background sync runs at all
	Enabled bool `json:"enabled"`

	// Interval between sync passes, as a duration string (e.g. "2m")
	Interval string `json:"interval"`

	// MaxPull caps how many messages one pass pulls per provider view
	MaxPull int64 `json:"max_pull"`
}

// ListConfig holds listing and pagination settings
type ListConfig struct {
	// PageSize is the window size of rendered listings
	PageSize int `json:"page_size"`

	// SnapshotSize caps the largest single page a listing request may ask for
	SnapshotSize int `json:"snapshot_size"`
}

// Config holds all configuration for inboxd
type Config struct {
	Credentials string `json:"credentials"`
	Token       string `json:"token"`

	// Database is the path of the local mail store
	Database string `json:"database"`

	List ListConfig `json:"list"`
	Sync SyncConfig `json:"sync"`

	// Logging
	LogFile string `json:"log_file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		List: ListConfig{
			PageSize:     50,
			SnapshotSize: 1000,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: "2m",
			MaxPull:  100,
		},
		LogFile: "",
	}
}

// LoadConfig loads configuration from file, then applies environment
// overrides. A missing file is not an error: defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		}
	}

	// Environment overrides
	if v := os.Getenv("INBOXD_CREDENTIALS"); v != "" {
		cfg.Credentials = v
	}
	if v := os.Getenv("INBOXD_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("INBOXD_DATABASE"); v != "" {
		cfg.Database = v
	}

	if cfg.Credentials == "" || cfg.Token == "" {
		creds, token := DefaultCredentialPaths()
		if cfg.Credentials == "" {
			cfg.Credentials = creds
		}
		if cfg.Token == "" {
			cfg.Token = token
		}
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabasePath()
	}

	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	if v := os.Getenv("INBOXD_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "inboxd", "config.json")
}

// DefaultCredentialPaths returns the default paths for credentials and token
func DefaultCredentialPaths() (string, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}

	configDir := filepath.Join(home, ".config", "inboxd")
	return filepath.Join(configDir, "credentials.json"), filepath.Join(configDir, "token.json")
}

// DefaultDatabasePath returns the default mail store location
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "inboxd", "inboxd.db")
}

// DefaultLogDir returns the default log directory path
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "inboxd")
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetSyncInterval returns the parsed sync interval
func (c *Config) GetSyncInterval() time.Duration {
	if c.Sync.Interval != "" {
		if d, err := time.ParseDuration(c.Sync.Interval); err == nil {
			return d
		}
	}
	return 2 * time.Minute
}
