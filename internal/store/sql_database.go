// SPDX-License-Identifier: Apache-2.0

// Package store implements persistence for the zann core: the authoritative
// PostgreSQL item store with its per-vault change journal, and the SQLite
// local cache used by client agents.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/migrations"
)

// DB wraps *sql.DB with the infrastructure the repositories need: an error
// classifier for retry decisions and a structured logger. It is the root
// dependency of every repository and of migration execution.
type DB struct {
	*sql.DB

	errorClassifier ErrorClassifier
	logger          *logger.Logger
}

// Migrate applies all pending schema migrations for this connection's
// dialect. Called once at startup before any repository is used.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// InTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise. Context cancellation aborts the transaction: the
// driver rolls back when the context bound at BeginTx is done.
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommittingTransaction, err)
	}
	return nil
}

// Classify exposes the attached error classifier; connections without one
// (SQLite) report every error as non-retryable.
func (db *DB) Classify(err error) ErrorClassification {
	if db.errorClassifier == nil {
		return NonRetryable
	}
	return db.errorClassifier.Classify(err)
}

// ErrorClassifier normalises driver-level errors into a retry decision.
type ErrorClassifier interface {
	Classify(err error) ErrorClassification
}
