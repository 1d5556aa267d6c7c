package config

import (
	"fmt"
	"time"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL; Addr is used when it is empty.
	URL       string        `env:"REDIS_URL" yaml:"url"`
	Addr      string        `env:"REDIS_ADDR" yaml:"addr" default:"localhost:6379"`
	Password  string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database  int           `env:"REDIS_DATABASE" yaml:"database" default:"0"`
	Timeout   time.Duration `env:"REDIS_TIMEOUT" yaml:"timeout" default:"5s"`
	KeyPrefix string        `env:"REDIS_KEY_PREFIX" yaml:"key_prefix"`
}

// Validate checks that some address is configured.
func (r RedisConfig) Validate() error {
	if r.URL == "" && r.Addr == "" {
		return fmt.Errorf("either redis url or redis addr is required")
	}
	if r.Database < 0 {
		return fmt.Errorf("redis database cannot be negative, got %d", r.Database)
	}
	return nil
}
