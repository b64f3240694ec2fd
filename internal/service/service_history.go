// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// HistoryService serves the version-capped audit trail: listing previous
// versions and restoring one as the new live payload.
type HistoryService struct {
	deps   *Deps
	access *accessChecker
}

// NewHistoryService constructs a [HistoryService].
func NewHistoryService(deps *Deps, access *accessChecker) *HistoryService {
	return &HistoryService{deps: deps, access: access}
}

// ListVersions returns up to limit history entries, newest first. Access
// requires the read_history capability. For server-encrypted vaults the
// payloads are always decrypted; there is no separate read_previous check,
// so a read_history scope receives the decrypted payloads too.
func (s *HistoryService) ListVersions(ctx context.Context, vaultID, itemID uuid.UUID, limit int) (*models.VersionsResponse, error) {
	vault, item, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "read_history", item.Path); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.deps.HistoryCap {
		limit = s.deps.HistoryCap
	}

	entries, err := s.deps.Storages.History.ListByItem(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}

	resp := &models.VersionsResponse{Versions: make([]models.SyncHistoryEntry, 0, len(entries))}
	for i := range entries {
		entry := &entries[i]
		wire := models.SyncHistoryEntry{
			Version:        entry.Version,
			Checksum:       entry.Checksum,
			ChangeType:     entry.ChangeType,
			ChangedByName:  entry.ChangedByName,
			ChangedByEmail: entry.ChangedByEmail,
			CreatedAt:      entry.CreatedAt,
		}
		if vault.IsSharedServer() {
			plaintext, err := s.decryptHistoryPayload(vault, entry)
			if err != nil {
				return nil, err
			}
			wire.Payload = json.RawMessage(plaintext)
		} else {
			wire.PayloadEnc = entry.PayloadEnc
		}
		resp.Versions = append(resp.Versions, wire)
	}
	return resp, nil
}

// RestoreVersion applies the stored payload of a previous version as a new
// live version. The existing history is preserved; the pre-image is
// recorded with a Restore change type and the journal gains an update row.
func (s *HistoryService) RestoreVersion(ctx context.Context, vaultID, itemID uuid.UUID, version int64) (*models.MutationResponse, error) {
	vault, item, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "write", "")
	if err != nil {
		return nil, err
	}

	hist, err := s.deps.Storages.History.GetVersion(ctx, itemID, version)
	if errors.Is(err, store.ErrHistoryNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}

	applied, err := s.deps.Storages.Items.RestoreVersion(ctx, item, hist, actorSnapshot(identity), s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}
	return &models.MutationResponse{
		ItemID:    applied.ItemID.String(),
		Seq:       applied.Seq,
		Version:   applied.Version,
		UpdatedAt: applied.UpdatedAt,
	}, nil
}

func (s *HistoryService) loadVaultItem(ctx context.Context, vaultID, itemID uuid.UUID) (*models.Vault, *models.Item, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.deps.Storages.Items.GetItem(ctx, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if item.VaultID != vaultID {
		return nil, nil, ErrItemNotFound
	}
	return vault, item, nil
}

func (s *HistoryService) decryptHistoryPayload(vault *models.Vault, entry *models.ItemHistory) ([]byte, error) {
	vaultKey, err := unwrapVaultKey(s.deps.MasterKey, vault)
	if err != nil {
		return nil, err
	}
	defer vaultKey.Zero()
	return crypto.DecryptPayload(vaultKey, vault.ID, entry.ItemID, entry.PayloadEnc)
}
