// SPDX-License-Identifier: Apache-2.0

// Package service implements the business logic of the zann core: vault and
// item management, the synchronization protocol, credential rotation, and
// history. Server-side services consume an already-resolved caller identity
// from the request context; they never see credentials.
package service

import (
	"time"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
)

// Services aggregates the server-side services for the transport layer.
type Services struct {
	Vaults   *VaultService
	Items    *ItemService
	Sync     *SyncService
	Rotation *RotationService
	History  *HistoryService
}

// Deps carries everything the services share: repositories, the optional
// server master key, and retention/rotation policy knobs.
type Deps struct {
	Storages       *store.Storages
	MasterKey      *crypto.SecretKey
	HistoryCap     int
	RotationTTL    time.Duration
	StaleRetention time.Duration
	Logger         *logger.Logger
}

// NewServices wires the service layer from configuration and storages. The
// master key may be nil; shared server vaults and rotation then answer
// server_key_missing.
func NewServices(storages *store.Storages, cfg *config.StructuredConfig, masterKey *crypto.SecretKey, log *logger.Logger) (*Services, error) {
	deps := &Deps{
		Storages:       storages,
		MasterKey:      masterKey,
		HistoryCap:     cfg.History.MaxVersions,
		RotationTTL:    cfg.Rotation.LockTTL,
		StaleRetention: cfg.Rotation.StaleRetention,
		Logger:         log,
	}

	access := newAccessChecker(storages.Vaults)

	return &Services{
		Vaults:   NewVaultService(deps, access),
		Items:    NewItemService(deps, access),
		Sync:     NewSyncService(deps, access),
		Rotation: NewRotationService(deps, access),
		History:  NewHistoryService(deps, access),
	}, nil
}
