package config

import (
	"fmt"
	"strings"
)

// CommonConfig holds settings shared by every binary.
type CommonConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level" default:"info"`
	// LogFormat is json or text.
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format" default:"json"`
}

// Validate checks the log level and format.
func (c CommonConfig) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}
