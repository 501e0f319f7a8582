package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func migrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("prepare sqlite migrator: %w", err)
	}
	return runMigrations(src, "sqlite3", drv)
}

func migrateRowstore(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("prepare postgres migrator: %w", err)
	}
	return runMigrations(src, "pgx5", drv)
}

func runMigrations(src source.Driver, databaseName string, drv database.Driver) error {
	m, err := migrate.NewWithInstance("iofs", src, databaseName, drv)
	if err != nil {
		return fmt.Errorf("assemble migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// sqliteSchemaStatements splits the file backend's schema into individual
// statements for the edgesql backend, whose HTTP API cannot run the
// migrator and rejects multi-statement scripts.
func sqliteSchemaStatements() ([]string, error) {
	b, err := migrationsFS.ReadFile("migrations/sqlite/0001_init.up.sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	var stmts []string
	for _, part := range strings.Split(string(b), ";") {
		if part = strings.TrimSpace(part); part != "" {
			stmts = append(stmts, part)
		}
	}
	return stmts, nil
}
