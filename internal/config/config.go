package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DirName is the workspace directory holding configuration, logs and history.
const DirName = ".ftprep"

// Config holds all ftprep configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Prepare PrepareConfig `yaml:"prepare"`
	Check   CheckConfig   `yaml:"check"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// PrepareConfig controls how suggestions are answered.
type PrepareConfig struct {
	// AutoAccept applies every recommended fix without asking.
	AutoAccept bool `yaml:"auto_accept"`
	// Prompt selects the interactive prompt when AutoAccept is off: line or tui.
	Prompt string `yaml:"prompt"`
}

// CheckConfig configures the read-only check command.
type CheckConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"` // relative to the workspace directory
	Retention    string `yaml:"retention"`
}

// WatchConfig configures --watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ftprep",
		Version: "0.3.0",

		Prepare: PrepareConfig{
			AutoAccept: true,
			Prompt:     "line",
		},

		Check: CheckConfig{
			MaxConcurrency: 4,
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "history.db",
			Retention:    "720h",
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location inside workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from dir into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// save writes the configuration to a YAML file.
func (c *Config) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies FTPREP_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FTPREP_AUTO_ACCEPT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FTPREP_AUTO_ACCEPT %q: %w", v, err)
		}
		c.Prepare.AutoAccept = b
	}
	if path := os.Getenv("FTPREP_DB"); path != "" {
		c.History.DatabasePath = path
	}
	if lvl := os.Getenv("FTPREP_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if d := os.Getenv("FTPREP_WATCH_DEBOUNCE"); d != "" {
		c.Watch.Debounce = d
	}
	return nil
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetHistoryRetention returns how long runs are kept. Zero keeps everything.
func (c *Config) GetHistoryRetention() time.Duration {
	if c.History.Retention == "" {
		return 0
	}
	d, err := time.ParseDuration(c.History.Retention)
	if err != nil || d < 0 {
		return 720 * time.Hour
	}
	return d
}

// DatabasePath resolves the history database path against workspace.
func (c *Config) DatabasePath(workspace string) string {
	if filepath.IsAbs(c.History.DatabasePath) {
		return c.History.DatabasePath
	}
	return filepath.Join(workspace, DirName, c.History.DatabasePath)
}

// ValidPrompts lists the supported interactive prompts.
var ValidPrompts = []string{"line", "tui"}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidPrompts, c.Prepare.Prompt) {
		return fmt.Errorf("invalid prompt: %s (valid: %v)", c.Prepare.Prompt, ValidPrompts)
	}
	if c.Check.MaxConcurrency < 1 {
		return fmt.Errorf("check.max_concurrency must be at least 1, got %d", c.Check.MaxConcurrency)
	}
	if c.Logging.Level != "" && !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if c.History.Enabled && c.History.DatabasePath == "" {
		return fmt.Errorf("history is enabled but history.database_path is empty")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
