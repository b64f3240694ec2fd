// SPDX-License-Identifier: Apache-2.0

// Package migrations manages schema migrations for both zann databases: the
// server's PostgreSQL store and the client's SQLite cache. It uses goose
// with embedded SQL files so migrations travel inside the binary and apply
// automatically at startup.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
)

// embedMigrations holds all *.sql migration files compiled into the binary.
//
//go:embed *.sql sqlite/*.sql
var embedMigrations embed.FS

// Migrate applies all pending migrations for the dialect of db. Intended to
// be called once at startup before any repository touches the database.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migration error: db is nil")
	}

	goose.SetBaseFS(embedMigrations)

	dialect, dir := resolveDialectAndDir(db)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migration error setting dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// resolveDialectAndDir picks the migration set matching the driver behind
// db: the server schema at the package root for pgx, the cache schema under
// sqlite/ for go-sqlite3.
func resolveDialectAndDir(db *sql.DB) (dialect, dir string) {
	driverType := fmt.Sprintf("%T", db.Driver())
	if strings.Contains(strings.ToLower(driverType), "sqlite") {
		return "sqlite3", "sqlite"
	}
	return "pgx", "."
}
