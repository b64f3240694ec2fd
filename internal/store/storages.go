// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
)

// Storages groups the server-side repositories into a single value the
// service layer depends on.
type Storages struct {
	DB       *DB
	Vaults   VaultRepository
	Items    ItemRepository
	History  HistoryRepository
	Rotation RotationRepository
}

// NewStorages connects to PostgreSQL, applies migrations, and wires all
// server repositories.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	log.Info().Msg("creating server storages...")

	db, err := NewConnectPostgres(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storages{
		DB:       db,
		Vaults:   NewVaultRepository(db, log),
		Items:    NewItemRepository(db, log),
		History:  NewHistoryRepository(db, log),
		Rotation: NewRotationRepository(db, log),
	}, nil
}
