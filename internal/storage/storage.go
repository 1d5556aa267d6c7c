package storage

import (
	"context"
	"fmt"
	"os"
)

// Backend names a storage backend.
type Backend string

// Supported backends.
const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend Backend

	// LocalDir is the root directory of the local backend.
	LocalDir string

	S3Bucket string
	S3Prefix string
	S3       S3Options
}

// Manager hands out namespaced providers over one backend.
type Manager struct {
	backend  Backend
	provider Provider
}

// New builds the configured backend. The local directory is created when
// missing; S3 credentials come from the default AWS chain.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	switch cfg.Backend {
	case BackendLocal:
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return &Manager{backend: BackendLocal, provider: NewLocalProvider(cfg.LocalDir)}, nil

	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client, err := NewAWSS3ClientFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return &Manager{
			backend:  BackendS3,
			provider: NewS3Provider(cfg.S3Bucket, cfg.S3Prefix, client),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
}

// NewWithProvider wraps an existing provider.
func NewWithProvider(backend Backend, provider Provider) *Manager {
	return &Manager{backend: backend, provider: provider}
}

// Provider returns a provider scoped to namespace, or the root provider for "".
func (m *Manager) Provider(namespace string) Provider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedProvider(m.provider, namespace)
}

// Backend returns the configured backend.
func (m *Manager) Backend() Backend {
	return m.backend
}
