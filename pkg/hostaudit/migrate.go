// Package hostaudit persists one row per completed collective to a SQLite
// database, so a host consumer of the completion ABI could replay
// completions the process has already exited past instead of losing that
// history the moment the simulated host process ends — a durable stand-in
// for "the host polls the cmd-info/completion region", modeled on
// pkg/api/db/migrator's migrate.go.
package hostaudit

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies hostaudit's embedded schema migrations to a *sql.DB.
type Migrator struct {
	logger    *slog.Logger
	srcDriver source.Driver
}

// NewMigrator loads the embedded migration source.
func NewMigrator(logger *slog.Logger) (*Migrator, error) {
	d, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("hostaudit: load migrations: %w", err)
	}
	return &Migrator{logger: logger, srcDriver: d}, nil
}

// ApplyMigrations runs every pending migration against db.
func (m *Migrator) ApplyMigrations(db *sql.DB) error {
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("hostaudit: create sqlite3 migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", m.srcDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("hostaudit: construct migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("hostaudit: apply migrations: %w", err)
	}

	m.logger.Debug("hostaudit schema up to date")
	return nil
}
