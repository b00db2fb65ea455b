// Package logging provides config-driven categorized file logging for ftprep.
// Logs are written to .ftprep/logs/ with a separate file per category.
// Logging is controlled by logging.debug_mode in .ftprep/config.yaml - when
// false, no logs are written and every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and config
	CategoryPrep        Category = "prep"        // Driver steps per file
	CategoryReader      Category = "reader"      // Format detection and parsing
	CategoryValidator   Category = "validator"   // Validator findings
	CategoryRemediation Category = "remediation" // Applied and declined fixes
	CategoryOutput      Category = "output"      // Output naming, splitting, writing
	CategoryStore       Category = "store"       // Run history database
	CategoryWatch       Category = "watch"       // File watcher events
	CategoryTemplate    Category = "template"    // Prompt templating
)

// loggingConfig mirrors config.LoggingConfig to avoid an import cycle.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    loggingConfig
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	configMu  sync.RWMutex

	nop = zap.NewNop().Sugar()
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".ftprep", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		configMu.Lock()
		config.DebugMode = false
		configMu.Unlock()
	}

	if !IsDebugMode() {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== ftprep logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", level.Level())
	return nil
}

// loadConfig reads the logging section of .ftprep/config.yaml.
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	data, err := os.ReadFile(filepath.Join(workspace, ".ftprep", "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			config = loggingConfig{}
			level.SetLevel(zapcore.InfoLevel)
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config = cf.Logging

	lvl, err := zapcore.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
	return nil
}

// IsDebugMode returns whether file logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories missing from the config are enabled in debug mode.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category.
// It returns a no-op logger when the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category, sugar: nop}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category, sugar: nop}
	}

	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(file), level)
	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func newEncoder() zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	configMu.RLock()
	defer configMu.RUnlock()
	if config.JSONFormat {
		return zapcore.NewJSONEncoder(enc)
	}
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(enc)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.sugar.Sync()
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Prep(format string, args ...interface{})      { Get(CategoryPrep).Info(format, args...) }
func PrepDebug(format string, args ...interface{}) { Get(CategoryPrep).Debug(format, args...) }

func Reader(format string, args ...interface{})      { Get(CategoryReader).Info(format, args...) }
func ReaderDebug(format string, args ...interface{}) { Get(CategoryReader).Debug(format, args...) }

func Validator(format string, args ...interface{})      { Get(CategoryValidator).Info(format, args...) }
func ValidatorDebug(format string, args ...interface{}) { Get(CategoryValidator).Debug(format, args...) }

func Remediation(format string, args ...interface{}) { Get(CategoryRemediation).Info(format, args...) }
func RemediationDebug(format string, args ...interface{}) {
	Get(CategoryRemediation).Debug(format, args...)
}

func Output(format string, args ...interface{})      { Get(CategoryOutput).Info(format, args...) }
func OutputDebug(format string, args ...interface{}) { Get(CategoryOutput).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }
func WatchWarn(format string, args ...interface{})  { Get(CategoryWatch).Warn(format, args...) }

func Template(format string, args ...interface{}) { Get(CategoryTemplate).Info(format, args...) }
