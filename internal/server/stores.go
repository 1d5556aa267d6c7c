package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/lewisedginton/whatsapp_session_manager/internal/config"
	"github.com/lewisedginton/whatsapp_session_manager/internal/credentials"
	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/internal/storage"
	pkgconfig "github.com/lewisedginton/whatsapp_session_manager/pkg/config"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/health"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/health/checkers"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const credentialsCheckName = "credentials_store"

// credentialBackend is the selected credential store plus what the server
// needs to probe and release it.
type credentialBackend struct {
	store   session.CredentialStore
	check   health.Check
	closeFn func()
}

func (b *credentialBackend) close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

func (s *Server) createCredentialBackend(ctx context.Context) (*credentialBackend, error) {
	cfg := s.cfg

	switch cfg.Credentials.Backend {
	case appconfig.CredentialsPostgres:
		pool, err := NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Credentials.AutoMigrate {
			mm := credentials.NewMigrationManager(pool, s.log)
			err := mm.RunMigrations()
			_ = mm.Close()
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to migrate credential store: %w", err)
			}
		}
		store := credentials.NewPostgresStore(pool, s.log)
		s.log.Info("Using postgres credential store")
		return &credentialBackend{
			store:   store,
			check:   checkers.NewPingChecker(store, credentialsCheckName),
			closeFn: pool.Close,
		}, nil

	case appconfig.CredentialsRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.log.Info("Using redis credential store", logger.StringField("key_prefix", cfg.Redis.KeyPrefix))
		return &credentialBackend{
			store: credentials.NewRedisStore(client, cfg.Redis.KeyPrefix, s.log),
			check: checkers.NewRedisChecker(client, credentialsCheckName),
			closeFn: func() {
				if err := client.Close(); err != nil {
					s.log.Warn("Failed to close redis client", logger.ErrorField(err))
				}
			},
		}, nil

	case appconfig.CredentialsLocal, appconfig.CredentialsS3:
		mgr, err := storage.New(ctx, storage.Config{
			Backend:  storage.Backend(cfg.Credentials.Backend),
			LocalDir: cfg.Storage.LocalDir,
			S3Bucket: cfg.Storage.S3Bucket,
			S3Prefix: cfg.Storage.S3Prefix,
			S3: storage.S3Options{
				Region:   cfg.Storage.S3Region,
				Profile:  cfg.Storage.S3Profile,
				Endpoint: cfg.Storage.S3Endpoint,
			},
		})
		if err != nil {
			return nil, err
		}
		provider := mgr.Provider(cfg.Storage.Namespace)
		s.log.Info("Using blob credential store",
			logger.StringField("backend", string(mgr.Backend())),
			logger.StringField("namespace", cfg.Storage.Namespace))
		return &credentialBackend{
			store: credentials.NewBlobStore(provider),
			check: health.NewCheckFunc(credentialsCheckName, func(ctx context.Context) error {
				_, err := provider.Exists(ctx, ".health")
				return err
			}),
		}, nil

	case appconfig.CredentialsMemory:
		s.log.Warn("Using in-memory credential store, sessions will not survive a restart")
		return &credentialBackend{store: credentials.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unsupported credentials backend: %q", cfg.Credentials.Backend)
	}
}

// NewPostgresPool opens and pings a pgx pool for cfg.
func NewPostgresPool(ctx context.Context, cfg pkgconfig.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections) //nolint:gosec // G115: bounded by config validation
	poolCfg.MinConns = int32(cfg.MinConnections) //nolint:gosec // G115: bounded by config validation
	if cfg.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	}
	if cfg.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// NewRedisClient builds a client from REDIS_URL, or from the address fields
// when no URL is set.
func NewRedisClient(cfg pkgconfig.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.Database,
		}
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return redis.NewClient(opts), nil
}
