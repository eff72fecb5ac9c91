package main

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tesscpm/pkg/logging"
)

// Config represents the tesscpm configuration.
type Config struct {
	Ingest  IngestConfig   `yaml:"ingest"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Log.Format, validation.In("json", "console")),
	); err != nil {
		return err
	}
	return nil
}

// IngestConfig holds the cutout loading switches.
type IngestConfig struct {
	RemoveBad           bool `yaml:"remove_bad"`
	Verbose             bool `yaml:"verbose"`
	StrictNormalization bool `yaml:"strict_normalization"`
	// Workers bounds the median goroutines; 0 uses every CPU.
	Workers int `yaml:"workers"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(1024)),
	)
}

// MetricsConfig holds the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NewDefaultConfig returns a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			RemoveBad: true,
			Verbose:   true,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}
