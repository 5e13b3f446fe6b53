package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in the working and home directories.
const FileName = ".wizsync.toml"

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Endpoint:       "docwiz",
		Root:           ".",
		RequestTimeout: 30 * time.Second,
		ConflictPolicy: "prompt",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
	}
}

// fileConfig is the on-disk shape of Config. Durations are strings so the
// file reads "30s" rather than nanoseconds.
type fileConfig struct {
	Endpoint       string          `toml:"endpoint"`
	Root           string          `toml:"root"`
	RequestTimeout string          `toml:"request_timeout"`
	ConflictPolicy string          `toml:"conflict_policy"`
	User           string          `toml:"user"`
	Log            LogConfig       `toml:"log"`
	Journal        JournalConfig   `toml:"journal"`
	Dashboard      DashboardConfig `toml:"dashboard"`
}

// WriteDefault writes the default configuration as TOML. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	def := DefaultConfig()
	fc := fileConfig{
		Endpoint:       def.Endpoint,
		Root:           def.Root,
		RequestTimeout: def.RequestTimeout.String(),
		ConflictPolicy: def.ConflictPolicy,
		Log:            def.Log,
		Journal:        def.Journal,
		Dashboard:      def.Dashboard,
	}

	if _, err := fmt.Fprint(f, "# wizsync configuration\n# Environment variables WIZSYNC_<KEY> override these values (e.g. WIZSYNC_LOG_VERBOSE=true).\n\n"); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(fc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
