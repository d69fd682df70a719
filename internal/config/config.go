// Package config provides TOML configuration file loading and parsing for the
// powerwatch host. The configuration file lives at ~/.powerwatch/config.toml
// by default, but can be overridden with the --config flag. CLI flags always
// take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the host configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags.
type Config struct {
	// Addr is the host:port for the control server.
	// Default: 127.0.0.1:7171
	Addr string `toml:"addr"`

	// Journal is the path to the SQLite database recording firings and
	// power events. Default: ~/.powerwatch/powerwatch.db
	Journal string `toml:"journal"`

	// TimerPeriodMs is the firing period of the timer activity.
	// Default: 1000
	TimerPeriodMs int `toml:"timer_period_ms"`

	// WorkPeriodMs is the firing period of the deferred-work activity.
	// Default: 1000
	WorkPeriodMs int `toml:"work_period_ms"`

	// AlarmPeriodMs is the firing period of the wall-clock alarm activity.
	// Default: 10000
	AlarmPeriodMs int `toml:"alarm_period_ms"`

	// StopTimeoutMs bounds the synchronous-cancel barrier during teardown.
	// A cancel that does not complete within this window is reported as a
	// teardown failure. Default: 5000
	StopTimeoutMs int `toml:"stop_timeout_ms"`

	// WakeLockName is the informational name of the held wake lock.
	// Default: powerwatch
	WakeLockName string `toml:"wake_lock_name"`

	// WakeLockMode selects the sleep-inhibitor backing:
	//   "system" - platform inhibitor (caffeinate / systemd-inhibit)
	//   "noop"   - hold no real inhibitor (useful on unsupported hosts)
	// Default: system
	WakeLockMode string `toml:"wake_lock_mode"`

	// MdnsEnabled enables mDNS/Bonjour advertisement of the control server.
	// Discovery only reveals presence. Default: false
	MdnsEnabled bool `toml:"mdns_enabled"`

	// AuthTokenHash is a bcrypt hash of the bearer token required on the
	// event-injection endpoints. Empty disables authentication.
	AuthTokenHash string `toml:"auth_token_hash"`

	// LogFile is an optional path for log output. Empty logs to stderr.
	LogFile string `toml:"log_file"`
}

// DefaultConfigPath returns the default config file location: ~/.powerwatch/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".powerwatch", "config.toml"), nil
}

// DefaultJournalPath returns the default journal database location.
func DefaultJournalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".powerwatch", "powerwatch.db"), nil
}

// Load reads a TOML config file from the given path and returns a Config
// with defaults applied for any unset field.
//
// Behavior:
//   - If path is empty, attempts to load from the default location
//     (~/.powerwatch/config.toml). Returns a default Config without error
//     if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		// No explicit path: try default location, but don't error if missing.
		// This allows the host to start without any config file.
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			cfg.applyDefaults()
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		// If the user names a config file, it should exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	// Parse the TOML file. Any parse error is fatal since the user expects
	// the config to be applied.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// WriteDefault creates a config file with default settings at the given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, nothing to do
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# Powerwatch configuration

# Control server listen address
addr = %q

# Firing periods for the periodic activities
timer_period_ms = %d
work_period_ms = %d
alarm_period_ms = %d

# Sleep inhibitor: "system" or "noop"
wake_lock_mode = "system"
`, DefaultAddr, DefaultTimerPeriodMs, DefaultWorkPeriodMs, DefaultAlarmPeriodMs)

	// Restrictive permissions: the file may later carry an auth token hash.
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.TimerPeriodMs <= 0 {
		c.TimerPeriodMs = DefaultTimerPeriodMs
	}
	if c.WorkPeriodMs <= 0 {
		c.WorkPeriodMs = DefaultWorkPeriodMs
	}
	if c.AlarmPeriodMs <= 0 {
		c.AlarmPeriodMs = DefaultAlarmPeriodMs
	}
	if c.StopTimeoutMs <= 0 {
		c.StopTimeoutMs = DefaultStopTimeoutMs
	}
	if c.WakeLockName == "" {
		c.WakeLockName = DefaultWakeLockName
	}
	if c.WakeLockMode == "" {
		c.WakeLockMode = WakeLockModeSystem
	}
}

// TimerPeriod returns the timer activity period as a duration.
func (c *Config) TimerPeriod() time.Duration {
	return time.Duration(c.TimerPeriodMs) * time.Millisecond
}

// WorkPeriod returns the deferred-work activity period as a duration.
func (c *Config) WorkPeriod() time.Duration {
	return time.Duration(c.WorkPeriodMs) * time.Millisecond
}

// AlarmPeriod returns the alarm activity period as a duration.
func (c *Config) AlarmPeriod() time.Duration {
	return time.Duration(c.AlarmPeriodMs) * time.Millisecond
}

// StopTimeout returns the teardown cancel barrier bound as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}
