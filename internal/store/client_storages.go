// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
)

// ClientStorages groups the client-side cache repositories.
type ClientStorages struct {
	DB    *DB
	Cache CacheRepository
}

// NewClientStorages opens the SQLite cache (creating the file when absent),
// applies the cache schema migrations, and wires the repositories.
func NewClientStorages(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Msg("creating client storages...")

	db, err := NewConnectSQLite(ctx, cfg.CachePath, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}

	return &ClientStorages{
		DB:    db,
		Cache: NewCacheRepository(db, log),
	}, nil
}
