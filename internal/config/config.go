package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"audio-dedupe/internal/safety"
)

const (
	appName        = "audio-dedupe"
	systemStateDir = "/var/lib/audio-dedupe"
)

// StateDir holds the history database and the lock file:
// $XDG_STATE_HOME/audio-dedupe when set, /var/lib/audio-dedupe for root,
// ~/.local/state/audio-dedupe for everyone else
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); filepath.IsAbs(xdg) {
		return filepath.Join(xdg, appName)
	}
	if os.Geteuid() == 0 {
		return systemStateDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

func DefaultDatabasePath() string {
	return filepath.Join(StateDir(), "history.db")
}

func DefaultLockPath() string {
	return filepath.Join(StateDir(), appName+".lock")
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the metrics server
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`                     // Empty logs to stdout only
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type Config struct {
	Roots           []string      `yaml:"roots" json:"roots"`
	DryRun          bool          `yaml:"dry_run" json:"dry_run"`
	IntervalMinutes int           `yaml:"interval_minutes" json:"interval_minutes"` // 0 runs once
	DatabasePath    string        `yaml:"database_path" json:"database_path"`       // Empty disables history
	LockPath        string        `yaml:"lock_path" json:"lock_path"`
	ProtectedPaths  []string      `yaml:"protected_paths" json:"protected_paths"`
	NFSTimeout      int           `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"`
	Prometheus      PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg    `yaml:"logging" json:"logging"`
}

var (
	errNoRoots          = errors.New("configuration must specify at least one root")
	errInvalidPath      = errors.New("path must be absolute")
	errNegativeInterval = errors.New("interval_minutes cannot be negative")
	errInvalidPort      = errors.New("prometheus port out of range")
)

// Default returns a configuration with every default applied and no roots
func Default() *Config {
	return &Config{
		DatabasePath: DefaultDatabasePath(),
		LockPath:     DefaultLockPath(),
		NFSTimeout:   5,
		Logging:      LoggingCfg{RotationDays: 30},
	}
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read decodes a configuration file on top of Default without validating it,
// so callers can apply overrides first
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate applies defaults and checks invariants; roots are cleaned in place
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return errNoRoots
	}

	if c.IntervalMinutes < 0 {
		return errNegativeInterval
	}

	if c.Prometheus.Port < 0 || c.Prometheus.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.Prometheus.Port)
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	if c.NFSTimeout < 0 {
		c.NFSTimeout = 0
	}

	if c.LockPath == "" {
		c.LockPath = DefaultLockPath()
	}

	for i, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		c.ProtectedPaths[i] = cp
	}

	guard := safety.NewValidator(nil, c.ProtectedPaths)
	cleaned := make([]string, 0, len(c.Roots))
	seen := make(map[string]bool, len(c.Roots))
	for _, p := range c.Roots {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		if seen[cp] {
			continue
		}
		if err := guard.ValidateRoot(cp); err != nil {
			return fmt.Errorf("roots: %w", err)
		}
		seen[cp] = true
		cleaned = append(cleaned, cp)
	}
	c.Roots = cleaned

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// Interval returns the sweep period; zero means a single run
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) NFSTimeoutDuration() time.Duration {
	return time.Duration(c.NFSTimeout) * time.Second
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
