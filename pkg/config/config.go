// Package config handles loading and saving redtick configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/redtick/config.yaml
//   - State:  ~/.local/state/redtick/ (recent issues database)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Connection holds the remote tracker connection settings.
type Connection struct {
	// URL is the base URL of the Redmine-compatible tracker, e.g.
	// https://tracker.example.com
	URL string `yaml:"url"`
	// APIKey authenticates requests via the X-Redmine-API-Key header.
	APIKey string `yaml:"api_key"`
	// IgnoreSSLErrors disables TLS certificate verification.
	IgnoreSSLErrors bool `yaml:"ignore_ssl_errors,omitempty"`
	// TimeoutSeconds bounds each request (default 30).
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// TrackingConfig holds timer behavior preferences.
type TrackingConfig struct {
	// AutoStart starts the timer immediately after loading an issue.
	AutoStart bool `yaml:"auto_start,omitempty"`
	// SaveOnSwitch saves pending time to the previous issue when switching
	// issues while the timer is running (default true).
	SaveOnSwitch *bool `yaml:"save_on_switch,omitempty"`
	// DefaultActivityID is used for time entries until an activity is
	// selected explicitly. Zero means "use the tracker's default".
	DefaultActivityID int `yaml:"default_activity_id,omitempty"`
}

// Config is the top-level configuration for redtick.
type Config struct {
	Connection Connection     `yaml:"connection"`
	Tracking   TrackingConfig `yaml:"tracking,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	saveOnSwitch := true
	return Config{
		Connection: Connection{
			TimeoutSeconds: 30,
		},
		Tracking: TrackingConfig{
			AutoStart:    true,
			SaveOnSwitch: &saveOnSwitch,
		},
	}
}

// Timeout returns the request timeout as a duration.
func (c Connection) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SaveOnSwitchEnabled reports whether pending time is saved when switching
// issues. Defaults to true when unset.
func (t TrackingConfig) SaveOnSwitchEnabled() bool {
	if t.SaveOnSwitch == nil {
		return true
	}
	return *t.SaveOnSwitch
}

// Validate checks that the connection settings are usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Connection.URL) == "" {
		return fmt.Errorf("connection.url is required")
	}
	u, err := url.Parse(c.Connection.URL)
	if err != nil {
		return fmt.Errorf("parsing connection.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("connection.url must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(c.Connection.APIKey) == "" {
		return fmt.Errorf("connection.api_key is required")
	}
	return nil
}

// ConfigDir returns the XDG config directory for redtick.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "redtick")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "redtick")
}

// StateDir returns the XDG state directory for redtick.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "redtick")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "redtick")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// RecentDBPath returns the full path to the recent-issues database.
func RecentDBPath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "recent.db")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Connection.URL = strings.TrimRight(strings.TrimSpace(cfg.Connection.URL), "/")

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path. The file is created with
// 0600 since it carries the API key.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
