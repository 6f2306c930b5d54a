package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigratePostgres applies the Postgres schema. dsn must be a URL
// (postgres:// or postgresql://).
func MigratePostgres(dsn string) error {
	databaseURL, err := pgx5URL(dsn)
	if err != nil {
		return err
	}
	return migrateUp("postgres", databaseURL)
}

// MigrateSQLite applies the SQLite schema to the database file at path.
func MigrateSQLite(path string) error {
	normalized := filepath.ToSlash(path)
	if filepath.IsAbs(path) && !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return migrateUp("sqlite", "sqlite://"+normalized)
}

func migrateUp(dialect, databaseURL string) error {
	dir, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("access %s migrations: %w", dialect, err)
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create %s migration: %w", dialect, err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", dialect, err)
	}
	return nil
}

func pgx5URL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme), nil
		}
	}
	return "", fmt.Errorf("postgres dsn must be a postgres:// url")
}
