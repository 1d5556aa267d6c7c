package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	pkgconfig "github.com/lewisedginton/whatsapp_session_manager/pkg/config"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	pkgconfig.CommonConfig `yaml:",inline"`

	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"whatsapp-session-manager"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Database pkgconfig.DatabaseConfig   `yaml:"database"`
	Redis    pkgconfig.RedisConfig      `yaml:"redis"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`

	Health      HealthConfig      `yaml:"health"`
	Storage     StorageConfig     `yaml:"storage"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Security    SecurityConfig    `yaml:"security"`
}

// Validate validates the configuration and returns every problem found.
func (c *AppConfig) Validate() error {
	var result error

	if err := c.CommonConfig.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Health.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Gateway.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Webhook.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Supervisor.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Security.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	// Only the selected credentials backend needs its settings.
	switch c.Credentials.Backend {
	case CredentialsPostgres:
		if err := c.Database.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case CredentialsRedis:
		if err := c.Redis.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case CredentialsLocal:
		if c.Storage.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("storage local_dir is required for the local credentials backend"))
		}
	case CredentialsS3:
		if c.Storage.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage s3_bucket is required for the s3 credentials backend"))
		}
	case CredentialsMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("credentials backend must be one of [postgres, redis, local, s3, memory], got %q", c.Credentials.Backend))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.HTTP.Port),
		logger.StringField("log_level", c.LogLevel),
		logger.StringField("log_format", c.LogFormat),
		logger.StringField("credentials_backend", string(c.Credentials.Backend)),
		logger.StringField("gateway_url", redactURL(c.Gateway.URL)),
		logger.BoolField("webhook_enabled", c.Webhook.N8NURL != ""),
		logger.DurationField("restart_all_delay", c.Supervisor.RestartAllDelay),
		logger.DurationField("connect_timeout", c.Supervisor.ConnectTimeout),
		logger.BoolField("restart_on_startup", c.Supervisor.RestartOnStartup),
		logger.BoolField("health_enabled", c.Health.Enabled),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
	)
}

// redactURL drops any userinfo so credentials embedded in a URL never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
