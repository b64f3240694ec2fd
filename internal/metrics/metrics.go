// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the process-wide Prometheus collectors: database
// pool depth (fed by a background sampler) and counters for sync conflicts
// and denied access.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBPoolOpenConns is the sampled number of open connections in the
	// server database pool.
	DBPoolOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zann_db_pool_open_connections",
		Help: "Open connections in the server database pool.",
	})

	// DBPoolInUse is the sampled number of pool connections in use.
	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zann_db_pool_in_use_connections",
		Help: "Database pool connections currently in use.",
	})

	// SyncConflicts counts push conflicts by reason.
	SyncConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zann_sync_conflicts_total",
		Help: "Push conflicts reported to clients, by reason.",
	}, []string{"reason"})

	// ForbiddenAccess counts authorization denials by resource.
	ForbiddenAccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zann_forbidden_access_total",
		Help: "Requests denied by authorization, by resource.",
	}, []string{"resource"})
)
