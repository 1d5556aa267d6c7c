package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	// URL takes precedence over the individual components when set.
	URL string `env:"DATABASE_URL" yaml:"url"`

	Host     string `env:"DB_HOST" yaml:"host" default:"localhost"`
	Port     int    `env:"DB_PORT" yaml:"port" default:"5432"`
	Database string `env:"DB_NAME" yaml:"database" default:"whatsapp"`
	Username string `env:"DB_USER" yaml:"username" default:"postgres"`
	Password string `env:"DB_PASSWORD" yaml:"password"`
	SSLMode  string `env:"DB_SSLMODE" yaml:"sslmode" default:"disable"`

	MaxConnections int           `env:"DB_MAX_CONNECTIONS" yaml:"max_connections" default:"10"`
	MinConnections int           `env:"DB_MIN_CONNECTIONS" yaml:"min_connections" default:"1"`
	MaxIdleTime    time.Duration `env:"DB_MAX_IDLE_TIME" yaml:"max_idle_time" default:"5m"`
	MaxLifetime    time.Duration `env:"DB_MAX_LIFETIME" yaml:"max_lifetime" default:"30m"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"10s"`
}

// GetConnectionString returns URL or a DSN assembled from the components.
func (d DatabaseConfig) GetConnectionString() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// Validate checks the components (when no URL is given) and the pool bounds.
func (d DatabaseConfig) Validate() error {
	var result error

	if d.URL == "" {
		if d.Host == "" {
			result = multierror.Append(result, fmt.Errorf("database host is required"))
		}
		if d.Port < 1 || d.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("database port must be between 1-65535, got %d", d.Port))
		}
		if d.Database == "" {
			result = multierror.Append(result, fmt.Errorf("database name is required"))
		}
	}

	if d.MaxConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("max_connections must be positive, got %d", d.MaxConnections))
	}
	if d.MinConnections < 0 || d.MinConnections > d.MaxConnections {
		result = multierror.Append(result, fmt.Errorf("min_connections must be within [0, %d], got %d", d.MaxConnections, d.MinConnections))
	}

	return result
}
