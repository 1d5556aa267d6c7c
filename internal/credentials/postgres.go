package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/whatsapp_session_manager/internal/credentials/sqlc"
	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// PostgresStore keeps credentials in the auth_data table.
type PostgresStore struct {
	pool    *pgxpool.Pool
	queries sqlc.Querier
	logger  logger.Logger
}

// NewPostgresStore creates a store over pool. Run MigrationManager first.
func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		queries: sqlc.New(pool),
		logger:  log,
	}
}

// WithTx returns a store whose queries run inside tx.
func (s *PostgresStore) WithTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{
		pool:    s.pool,
		queries: sqlc.New(tx),
		logger:  s.logger,
	}
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	row, err := s.queries.GetAuthData(ctx, Key(sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth data: %w", err)
	}
	return row.Data, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, creds []byte) error {
	err := s.queries.UpsertAuthData(ctx, sqlc.UpsertAuthDataParams{
		SessionKey: Key(sessionID),
		Data:       creds,
	})
	if err != nil {
		return fmt.Errorf("upsert auth data: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	n, err := s.queries.DeleteAuthData(ctx, Key(sessionID))
	if err != nil {
		return fmt.Errorf("delete auth data: %w", err)
	}
	if n == 0 {
		return session.ErrCredentialsNotFound
	}
	s.logger.Debug("Deleted auth data", logger.SessionIDField(sessionID), logger.Int64Field("rows", n))
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.queries.ListSessionKeys(ctx, KeySuffix)
	if err != nil {
		return nil, fmt.Errorf("list session keys: %w", err)
	}
	return sessionIDsFromKeys(keys), nil
}

// Ping checks the pool; it satisfies checkers.Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}
