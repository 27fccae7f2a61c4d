package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds daemon-level settings. Retention and notification
// choices live in the separate, live-reloaded preferences file.
type Config struct {
	IntervalSec      int     `json:"interval_sec"`
	DataDir          string  `json:"data_dir"`
	ProcessLimit     int     `json:"process_limit"`
	SwapAlertMB      float64 `json:"swap_alert_mb"`
	MaintenanceSec   int     `json:"maintenance_check_sec"`
	WALWarnBytes     int64   `json:"wal_warn_bytes"`
	WALCriticalBytes int64   `json:"wal_critical_bytes"`
}

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		IntervalSec:      30,
		DataDir:          defaultDataDir(),
		ProcessLimit:     30,
		SwapAlertMB:      2048,
		MaintenanceSec:   60,
		WALWarnBytes:     16 << 20,
		WALCriticalBytes: 64 << 20,
	}
}

// DatabasePath returns the sqlite file inside the data directory.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "data", "memwatch.sqlite")
}

// WarmStartPath returns the restart-snapshot file location.
func (c Config) WarmStartPath() string {
	return filepath.Join(c.DataDir, "data", "history_snapshot.json")
}

// PreferencesPath returns the notification-preferences file location.
func (c Config) PreferencesPath() string {
	return filepath.Join(c.DataDir, "data", "notification_preferences.json")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "memwatch-data"
	}
	return filepath.Join(home, "MemoryWatch")
}

// Path returns ~/.config/memwatch/config.json (or XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "memwatch", "config.json")
}

// Load loads config from disk; returns defaults when no file exists.
func Load() (Config, error) {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
