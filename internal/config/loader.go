// Package config loads wizsync configuration from defaults, a TOML file,
// WIZSYNC_* environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/docwiz/wizsync/internal/reconcile"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WIZSYNC"

// NewViper returns a viper instance with defaults and environment binding
// set up. Flags can be bound to it before Load is called.
func NewViper() *viper.Viper {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("endpoint", def.Endpoint)
	v.SetDefault("url", def.URL)
	v.SetDefault("base", def.Base)
	v.SetDefault("root", def.Root)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("conflict_policy", def.ConflictPolicy)
	v.SetDefault("user", def.User)
	v.SetDefault("password", def.Password)
	v.SetDefault("endpoints_file", def.EndpointsFile)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.verbose", def.Log.Verbose)
	v.SetDefault("journal.enabled", def.Journal.Enabled)
	v.SetDefault("journal.path", def.Journal.Path)
	v.SetDefault("dashboard.port", def.Dashboard.Port)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file and returns the merged configuration. When path
// is empty, .wizsync.toml is looked up in the working directory and then the
// home directory; a missing file is not an error. An explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".toml"))
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := reconcile.ParsePolicy(c.ConflictPolicy); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Root == "" {
		return fmt.Errorf("root cannot be empty")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	return nil
}

// Policy returns the parsed conflict policy.
func (c *Config) Policy() reconcile.Policy {
	p, err := reconcile.ParsePolicy(c.ConflictPolicy)
	if err != nil {
		return reconcile.PolicyPrompt
	}
	return p
}

// YAML renders the configuration for display with the password masked.
func (c *Config) YAML() ([]byte, error) {
	shown := *c
	if shown.Password != "" {
		shown.Password = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
