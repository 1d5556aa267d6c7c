package credentials

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationManager applies the embedded auth_data schema migrations.
type MigrationManager struct {
	db     *sql.DB
	logger logger.Logger
}

// NewMigrationManager opens a database/sql handle on top of pool.
func NewMigrationManager(pool *pgxpool.Pool, log logger.Logger) *MigrationManager {
	return &MigrationManager{
		db:     stdlib.OpenDBFromPool(pool),
		logger: log,
	}
}

// RunMigrations applies every pending up migration.
func (m *MigrationManager) RunMigrations() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	m.logger.Info("Starting credential store migrations")

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No new migrations to apply")
			return nil
		}
		m.logger.Error("Failed to run migrations", logger.ErrorField(err))
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	m.logger.Info("Successfully applied migrations",
		logger.IntField("version", int(version)),
		logger.BoolField("dirty", dirty))
	return nil
}

func (m *MigrationManager) createMigrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create embedded migration source: %w", err)
	}

	driver, err := postgres.WithInstance(m.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}

// Close releases the database/sql handle.
func (m *MigrationManager) Close() error {
	return m.db.Close()
}
