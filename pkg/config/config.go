// Package config loads CLI configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds haltest configuration.
type Config struct {
	LogLevel     string
	StorePath    string
	OTLPEndpoint string
	Telemetry    bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("HALTEST_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	otlpEndpoint := os.Getenv("HALTEST_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:     logLevel,
		StorePath:    os.Getenv("HALTEST_STORE_PATH"),
		OTLPEndpoint: otlpEndpoint,
		Telemetry:    os.Getenv("HALTEST_TELEMETRY") == "true",
	}
}

// SlogLevel maps the configured level string to a slog.Level, defaulting to
// Info for unknown values.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
