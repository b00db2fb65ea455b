package main

import (
	"fmt"
	"os"

	"ftprep/internal/config"
	"ftprep/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ftprep",
	Short: "ftprep - prepare prompt/completion data for fine-tuning",
	Long: `ftprep reads training and validation files (CSV, TSV, XLSX, TXT, JSON or
JSONL), checks them for common data problems, fixes what it can and writes
prompt/completion JSONL files ready for fine-tuning.

Example:
  ftprep prepare-data train.csv valid.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
			workspace = wd
		}
		if err := config.LoadDotEnv(workspace); err != nil {
			return err
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath(workspace)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}
		cfg = loaded

		zc := zap.NewProductionConfig()
		if verbose || cfg.Logging.Level == "debug" {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		logging.Boot("config loaded from %s", path)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.ftprep/config.yaml)")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// appConfig returns the loaded config, or defaults when commands run without
// the root pre-run.
func appConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

func appLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}
