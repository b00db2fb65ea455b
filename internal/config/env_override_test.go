package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("FTPREP_AUTO_ACCEPT disables auto-accept", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FTPREP_AUTO_ACCEPT", "false")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.False(t, cfg.Prepare.AutoAccept)
	})

	t.Run("invalid FTPREP_AUTO_ACCEPT is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FTPREP_AUTO_ACCEPT", "perhaps")

		_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
		assert.ErrorContains(t, err, "FTPREP_AUTO_ACCEPT")
	})

	t.Run("FTPREP_DB and FTPREP_LOG_LEVEL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FTPREP_DB", "/tmp/runs.db")
		t.Setenv("FTPREP_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "/tmp/runs.db", cfg.History.DatabasePath)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("env wins over file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FTPREP_WATCH_DEBOUNCE", "1s")

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("watch:\n  debounce: 3s\n"), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, time.Second, cfg.GetWatchDebounce())
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(dir), "missing .env is fine")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FTPREP_TEST_DOTENV=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("FTPREP_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("FTPREP_TEST_DOTENV"))

	// Existing variables are not overwritten.
	t.Setenv("FTPREP_TEST_DOTENV", "from-env")
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-env", os.Getenv("FTPREP_TEST_DOTENV"))
}
