package config

// CredentialsBackend names where session credentials are persisted.
type CredentialsBackend string

const (
	CredentialsPostgres CredentialsBackend = "postgres"
	CredentialsRedis    CredentialsBackend = "redis"
	CredentialsLocal    CredentialsBackend = "local"
	CredentialsS3       CredentialsBackend = "s3"
	CredentialsMemory   CredentialsBackend = "memory"
)

// CredentialsConfig selects the credential store.
type CredentialsConfig struct {
	Backend CredentialsBackend `env:"CREDENTIALS_BACKEND" yaml:"backend" default:"postgres"`
	// AutoMigrate applies pending postgres migrations on startup.
	AutoMigrate bool `env:"CREDENTIALS_AUTO_MIGRATE" yaml:"auto_migrate" default:"true"`
}
