package config

import (
	"fmt"
	"time"
)

// HealthConfig holds health check configuration
type HealthConfig struct {
	Enabled          bool          `env:"HEALTH_ENABLED" yaml:"enabled" default:"true"`
	Port             int           `env:"HEALTH_PORT" yaml:"port" default:"8081"`
	LivenessPath     string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath    string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	CombinedPath     string        `env:"HEALTH_COMBINED_PATH" yaml:"combined_path" default:"/health"`
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"5s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`

	// GRPCPort serves grpc.health.v1 when non-zero.
	GRPCPort      int           `env:"GRPC_HEALTH_PORT" yaml:"grpc_port" default:"0"`
	CheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" yaml:"check_interval" default:"10s"`
}

func (h HealthConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("health port must be between 1-65535, got %d", h.Port)
	}
	if h.GRPCPort < 0 || h.GRPCPort > 65535 {
		return fmt.Errorf("health grpc port must be between 0-65535, got %d", h.GRPCPort)
	}
	if h.Timeout <= 0 {
		return fmt.Errorf("health timeout must be greater than 0")
	}
	if h.FailureThreshold < 1 {
		return fmt.Errorf("health failure threshold must be at least 1")
	}
	return nil
}
