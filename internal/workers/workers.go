// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"context"
	"database/sql"
	"time"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/metrics"
	"github.com/zann-sh/zann/internal/store"
)

// Workers aggregates the background tasks and starts each in its own
// goroutine.
type Workers struct {
	workers []Worker
}

// NewWorkers builds the standard server worker set from configuration.
func NewWorkers(cfg *config.StructuredConfig, storages *store.Storages, log *logger.Logger) *Workers {
	return &Workers{workers: []Worker{
		&historyPruner{
			history:       storages.History,
			interval:      cfg.Workers.HistoryPruneInterval,
			retentionDays: cfg.History.RetentionDays,
			logger:        log,
		},
		&rotationPruner{
			rotation: storages.Rotation,
			interval: cfg.Workers.RotationPruneInterval,
			logger:   log,
		},
		&poolSampler{
			db:       storages.DB.DB,
			interval: cfg.Workers.PoolSampleInterval,
			logger:   log,
		},
	}}
}

// Run launches every worker; each blocks on ctx in its own goroutine.
func (w *Workers) Run(ctx context.Context) {
	for _, worker := range w.workers {
		go worker.Run(ctx)
	}
}

// historyPruner deletes item-history rows older than the retention window.
type historyPruner struct {
	history       store.HistoryRepository
	interval      time.Duration
	retentionDays int
	logger        *logger.Logger
}

func (p *historyPruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -p.retentionDays)
			pruned, err := p.history.PruneOlderThan(ctx, cutoff)
			if err != nil {
				p.logger.Err(err).Msg("history pruning failed")
				continue
			}
			if pruned > 0 {
				p.logger.Info().Int64("pruned", pruned).Msg("history rows pruned")
			}
		}
	}
}

// rotationPruner wipes rotation candidates whose recover window has passed.
type rotationPruner struct {
	rotation store.RotationRepository
	interval time.Duration
	logger   *logger.Logger
}

func (p *rotationPruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := p.rotation.PurgeExpiredCandidates(ctx, time.Now().UTC())
			if err != nil {
				p.logger.Err(err).Msg("rotation candidate pruning failed")
				continue
			}
			if purged > 0 {
				p.logger.Info().Int64("purged", purged).Msg("stale rotation candidates purged")
			}
		}
	}
}

// poolSampler feeds the database pool gauges.
type poolSampler struct {
	db       *sql.DB
	interval time.Duration
	logger   *logger.Logger
}

func (p *poolSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.db.Stats()
			metrics.DBPoolOpenConns.Set(float64(stats.OpenConnections))
			metrics.DBPoolInUse.Set(float64(stats.InUse))
		}
	}
}
