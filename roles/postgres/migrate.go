package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// NewMigrator returns a migrate runner over the embedded schema.
func NewMigrator(databaseURL, migrationsTable string) (*migrate.Migrate, error) {
	dbURL, err := migrateDatabaseURL(databaseURL, migrationsTable)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	runner, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate runner: %w", err)
	}
	return runner, nil
}

// CloseMigrator releases the runner's source and database handles.
func CloseMigrator(runner *migrate.Migrate) error {
	if runner == nil {
		return nil
	}
	sourceErr, databaseErr := runner.Close()
	return errors.Join(sourceErr, databaseErr)
}

// IsNoChange reports whether err only means there was nothing left to migrate.
func IsNoChange(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return true
	}
	// Steps past the first or last migration surface as a bare os.ErrNotExist.
	return errors.Is(err, os.ErrNotExist)
}

// migrateDatabaseURL rewrites a postgres URL for the pgx/v5 migrate driver.
func migrateDatabaseURL(databaseURL, migrationsTable string) (string, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return "", errors.New("missing database URL")
	}

	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database URL: %w", err)
	}

	switch parsed.Scheme {
	case "postgres", "postgresql", "pgx5":
		parsed.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database URL scheme %q", parsed.Scheme)
	}

	if migrationsTable != "" {
		query := parsed.Query()
		if query.Get("x-migrations-table") == "" {
			query.Set("x-migrations-table", migrationsTable)
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
