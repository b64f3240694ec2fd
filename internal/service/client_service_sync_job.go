// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// SyncJob periodically mirrors every vault of one storage. It is the
// heartbeat of the headless agent: verify the server identity once per
// cycle, then push-and-pull each vault. Errors are logged and never stop
// the job.
type SyncJob struct {
	storageID uuid.UUID
	cache     store.CacheRepository
	sync      *ClientSyncService
	interval  time.Duration
	logger    *logger.Logger
}

// NewSyncJob constructs a [SyncJob] for one storage.
func NewSyncJob(storageID uuid.UUID, cache store.CacheRepository, sync *ClientSyncService, interval time.Duration, log *logger.Logger) *SyncJob {
	return &SyncJob{
		storageID: storageID,
		cache:     cache,
		sync:      sync,
		interval:  interval,
		logger:    log,
	}
}

// Run blocks until ctx is cancelled, executing one sync cycle per tick
// (and one immediately on start).
func (j *SyncJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.cycle(ctx)
		}
	}
}

func (j *SyncJob) cycle(ctx context.Context) {
	log := j.logger.GetChildLogger()
	ctx = log.WithContext(ctx)

	if err := j.sync.VerifyServer(ctx, j.storageID); err != nil {
		log.Err(err).Str("storage_id", j.storageID.String()).Msg("server verification failed, skipping cycle")
		return
	}

	vaults, err := j.cache.ListVaults(ctx, j.storageID)
	if err != nil {
		log.Err(err).Msg("listing cached vaults failed")
		return
	}

	for i := range vaults {
		vault := &vaults[i]
		if vault.CachePolicy == models.CacheNone {
			continue
		}
		if err := j.sync.SyncVault(ctx, j.storageID, vault.ID, nil); err != nil {
			log.Err(err).
				Str("vault_id", vault.ID.String()).
				Msg("vault sync failed")
		}
	}
}
