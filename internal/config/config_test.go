package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, "drop", cfg.Training.MissingStrategy)
	assert.False(t, cfg.Training.ReuseTrainingState)
	assert.Equal(t, ":8501", cfg.Server.Addr)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  models: m
  predictions: p
  plots: pl
training:
  test_size: 0.3
  cv_folds: 5
  reuse_training_state: true
log:
  level: debug
`), 0o644))

	t.Setenv("AUTOML_SEED", "7")
	t.Setenv("AUTOML_PLOTS_DIR", "elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "m", cfg.Paths.Models)
	assert.Equal(t, "elsewhere", cfg.Paths.Plots)
	assert.Equal(t, 0.3, cfg.Training.TestSize)
	assert.Equal(t, 5, cfg.Training.CVFolds)
	assert.True(t, cfg.Training.ReuseTrainingState)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTOML_ADDR=:9000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("AUTOML_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("AUTOML_TEST_SIZE", "1.5")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("AUTOML_TEST_SIZE", "abc")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Training.CVFolds = 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Paths.Models = ""
	assert.Error(t, cfg.Validate())
}

func TestEnsureDirsAndLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.Models = filepath.Join(dir, "a", "models")
	cfg.Paths.Predictions = filepath.Join(dir, "b")
	cfg.Paths.Plots = filepath.Join(dir, "c")

	require.NoError(t, cfg.EnsureDirs())
	for _, p := range []string{cfg.Paths.Models, cfg.Paths.Predictions, cfg.Paths.Plots} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
