package config

import (
	"fmt"
	"time"
)

// SupervisorConfig tunes the session supervisor.
type SupervisorConfig struct {
	RestartAllDelay time.Duration `env:"SESSION_RESTART_ALL_DELAY" yaml:"restart_all_delay" default:"3s"`
	// ConnectTimeout bounds each gateway connect. 0 disables the bound.
	ConnectTimeout   time.Duration `env:"SESSION_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"30s"`
	RestartOnStartup bool          `env:"SESSION_RESTART_ON_STARTUP" yaml:"restart_on_startup" default:"true"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"30s"`
}

func (s SupervisorConfig) Validate() error {
	if s.RestartAllDelay < 0 {
		return fmt.Errorf("restart_all_delay cannot be negative")
	}
	if s.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout cannot be negative")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than 0")
	}
	return nil
}

// SessionRestartAllDelay converts RestartAllDelay to the supervisor's
// convention, where zero selects its default and a negative value means no
// pause at all.
func (s SupervisorConfig) SessionRestartAllDelay() time.Duration {
	if s.RestartAllDelay == 0 {
		return -1
	}
	return s.RestartAllDelay
}

// SessionConnectTimeout converts ConnectTimeout to the supervisor's
// convention, where a negative value disables the bound.
func (s SupervisorConfig) SessionConnectTimeout() time.Duration {
	if s.ConnectTimeout == 0 {
		return -1
	}
	return s.ConnectTimeout
}
