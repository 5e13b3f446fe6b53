package config

import (
	"path/filepath"
	"time"
)

// Config represents the full wizsync configuration
type Config struct {
	// Endpoint names an entry of the endpoint table
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// URL and Base override the endpoint entry when set
	URL  string `yaml:"url" mapstructure:"url"`
	Base string `yaml:"base" mapstructure:"base"`

	// Root is the directory holding the wizards folder
	Root string `yaml:"root" mapstructure:"root"`

	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// ConflictPolicy is prompt, keep-local or overwrite
	ConflictPolicy string `yaml:"conflict_policy" mapstructure:"conflict_policy"`

	// Credentials; when both are set no prompt is shown
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`

	// EndpointsFile adds or overrides endpoint table entries
	EndpointsFile string `yaml:"endpoints_file" mapstructure:"endpoints_file"`

	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Journal   JournalConfig   `yaml:"journal" mapstructure:"journal"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
}

// LogConfig configures console and file logging
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" toml:"max_backups"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose" toml:"verbose"`
}

// JournalConfig configures the event journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" toml:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" toml:"path"`
}

// DashboardConfig configures the WebSocket dashboard
type DashboardConfig struct {
	// Port 0 disables the dashboard
	Port int `yaml:"port" mapstructure:"port" toml:"port"`
}

// JournalPath returns the journal database path, defaulting to
// <root>/.wizsync/journal.db.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Root, ".wizsync", "journal.db")
}

// HasCredentials reports whether both user and password are configured.
func (c *Config) HasCredentials() bool {
	return c.User != "" && c.Password != ""
}
