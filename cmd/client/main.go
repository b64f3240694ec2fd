// SPDX-License-Identifier: Apache-2.0

// The zann agent is the headless client: it keeps a local SQLite mirror of
// the server vaults and runs the sync job on an interval. Desktop shells
// talk to the same cache through the service layer.
package main

import (
	"context"

	"github.com/zann-sh/zann/internal/adapter"
	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/server"
	"github.com/zann-sh/zann/internal/service"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

func main() {
	log := logger.NewLogger("zann-agent")

	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading agent config")
	}

	ctx, stop := server.SignalContext()
	defer stop()

	storages, err := store.NewClientStorages(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening local cache")
	}

	storage, err := resolveStorage(ctx, storages.Cache, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error resolving storage record")
	}

	transport := adapter.NewServerAdapter(adapter.HTTPClientConfig{
		BaseURL: cfg.ServerURL,
		Token:   cfg.Token,
	})

	syncService := service.NewClientSyncService(storages.Cache, transport, log)
	job := service.NewSyncJob(storage.ID, storages.Cache, syncService, cfg.SyncInterval, log)

	log.Info().
		Str("server", cfg.ServerURL).
		Dur("interval", cfg.SyncInterval).
		Msg("zann agent running")
	job.Run(ctx)
}

// resolveStorage finds or creates the storage record for the configured
// server. A fingerprint set in config replaces the stored one on every start;
// without one, an existing record keeps its stored fingerprint.
func resolveStorage(ctx context.Context, cache store.CacheRepository, cfg *config.ClientConfig) (*models.LocalStorage, error) {
	storage := &models.LocalStorage{
		ID:                utils.StorageIDForURL(cfg.ServerURL),
		Kind:              models.StorageRemote,
		Name:              cfg.ServerURL,
		ServerURL:         cfg.ServerURL,
		ServerFingerprint: cfg.ServerFingerprint,
	}

	existing, err := cache.GetStorage(ctx, storage.ID)
	if err == nil {
		if storage.ServerFingerprint == "" {
			return existing, nil
		}
		existing.ServerFingerprint = storage.ServerFingerprint
		if err := cache.UpsertStorage(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if err := cache.UpsertStorage(ctx, storage); err != nil {
		return nil, err
	}
	return storage, nil
}
