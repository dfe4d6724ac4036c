// Package database opens the SQL backends the service runs on and hides the
// few places where PostgreSQL and SQLite disagree.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver names a supported SQL backend.
type Driver string

const (
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite"
)

func ParseDriver(name string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(name))); d {
	case Postgres, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// ForUpdate is the row-lock suffix for a SELECT inside a transaction.
// SQLite has no row locks; a single pooled connection serializes writers.
func (d Driver) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// ForUpdateSkipLocked lets concurrent pollers claim disjoint rows.
func (d Driver) ForUpdateSkipLocked() string {
	if d == Postgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

// Open connects to the backend and verifies the connection with a ping.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	switch driver {
	case Postgres:
		return openPostgres(ctx, dsn)
	case SQLite:
		return openSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Every transaction holds the only connection, so balance updates never
	// interleave. Code must not use db while it holds a tx.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// ConnectWithRetry keeps calling Open until it succeeds, attempts run out
// or ctx is done.
func ConnectWithRetry(ctx context.Context, driver Driver, dsn string, attempts int, delay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := Open(ctx, driver, dsn)
		if err == nil {
			logger.Info("Connected to database", zap.String("driver", string(driver)))
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, lastErr)
}

// ToMillis normalizes timestamps into millisecond precision for storage.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis restores a stored timestamp in UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NullMillis converts an optional timestamp for storage.
func NullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToMillis(*t), Valid: true}
}
