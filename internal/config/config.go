package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Paths struct {
		Models      string `yaml:"models"`
		Predictions string `yaml:"predictions"`
		Plots       string `yaml:"plots"`
	} `yaml:"paths"`

	Training struct {
		TestSize           float64 `yaml:"test_size"`
		Seed               int64   `yaml:"seed"`
		CVFolds            int     `yaml:"cv_folds"`
		MissingStrategy    string  `yaml:"missing_strategy"`
		ReuseTrainingState bool    `yaml:"reuse_training_state"`
	} `yaml:"training"`

	Server struct {
		Addr        string `yaml:"addr"`
		MaxUploadMB int64  `yaml:"max_upload_mb"`
	} `yaml:"server"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Paths.Models = "outputs/models"
	cfg.Paths.Predictions = "outputs/predictions"
	cfg.Paths.Plots = "outputs/plots"
	cfg.Training.TestSize = 0.2
	cfg.Training.Seed = 42
	cfg.Training.MissingStrategy = "drop"
	cfg.Server.Addr = ":8501"
	cfg.Server.MaxUploadMB = 64
	cfg.History.Path = "outputs/history.db"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads .env (when present), then the YAML file at path (when not empty), then the
// AUTOML_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("AUTOML_CONFIG")
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Paths.Models = getEnvOrDefault("AUTOML_MODEL_DIR", c.Paths.Models)
	c.Paths.Predictions = getEnvOrDefault("AUTOML_PREDICTIONS_DIR", c.Paths.Predictions)
	c.Paths.Plots = getEnvOrDefault("AUTOML_PLOTS_DIR", c.Paths.Plots)
	c.Server.Addr = getEnvOrDefault("AUTOML_ADDR", c.Server.Addr)
	c.History.Path = getEnvOrDefault("AUTOML_HISTORY_PATH", c.History.Path)
	c.Log.Level = getEnvOrDefault("AUTOML_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("AUTOML_TEST_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AUTOML_TEST_SIZE %q: %w", v, err)
		}
		c.Training.TestSize = f
	}

	if v := os.Getenv("AUTOML_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AUTOML_SEED %q: %w", v, err)
		}
		c.Training.Seed = n
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("training.test_size must be between 0 and 1, got %v", c.Training.TestSize)
	}
	if c.Training.CVFolds < 0 || c.Training.CVFolds == 1 {
		return fmt.Errorf("training.cv_folds must be 0 or at least 2, got %d", c.Training.CVFolds)
	}
	if c.Paths.Models == "" || c.Paths.Predictions == "" || c.Paths.Plots == "" {
		return fmt.Errorf("paths.models, paths.predictions and paths.plots are required")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// EnsureDirs creates the output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.Models, c.Paths.Predictions, c.Paths.Plots} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
