package config

// LoggingConfig configures logging. The same section is read by the logging
// package at startup.
type LoggingConfig struct {
	Level      string          `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"` // JSON lines instead of console text
	DebugMode  bool            `yaml:"debug_mode"`  // false disables file logging
	Categories map[string]bool `yaml:"categories"`  // per-category toggles
}
