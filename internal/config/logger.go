package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger for the configured level. Development mode switches to the
// console encoder with caller and stack information.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
