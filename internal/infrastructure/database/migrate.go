package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema for driver to the database at
// migrationURL (postgres://... or sqlite://path).
func Migrate(driver Driver, migrationURL string, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(driver))
	if err != nil {
		return fmt.Errorf("open embedded migrations for %s: %w", driver, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrate instance", zap.NamedError("source_error", srcErr), zap.NamedError("db_error", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run database migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("Database migrations completed", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
