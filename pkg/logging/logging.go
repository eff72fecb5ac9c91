// Package logging builds zap loggers for the tesscpm tools
package logging

import (
	"go.uber.org/zap"
)

// Config holds logging configuration
type Config struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // "json" or "console"
	OutputPath  string `yaml:"output_path"`
	Development bool   `yaml:"development"`
}

// NewLogger creates a logger from config
func NewLogger(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if config.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	// Keep stdout free for command output.
	zapConfig.OutputPaths = []string{"stderr"}
	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	return zapConfig.Build()
}

// NewDefaultLogger creates a console logger at info level
func NewDefaultLogger() *zap.Logger {
	logger, err := NewLogger(Config{Level: "info", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
