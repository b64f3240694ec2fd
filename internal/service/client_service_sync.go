// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// SyncTransport is the wire the client sync engine speaks over. The resty
// adapter implements it against a zann server.
type SyncTransport interface {
	Pull(ctx context.Context, req *models.SyncPullRequest) (*models.SyncPullResponse, error)
	Push(ctx context.Context, req *models.SyncPushRequest) (*models.SyncPushResponse, error)
	Meta(ctx context.Context) (*models.MetaResponse, error)
}

// ClientSyncService runs the client half of the synchronization protocol:
// push the pending queue, then pull the journal behind the saved cursor and
// apply it to the cache with at-most-once semantics.
type ClientSyncService struct {
	cache     store.CacheRepository
	transport SyncTransport
	logger    *logger.Logger
}

// NewClientSyncService constructs a [ClientSyncService].
func NewClientSyncService(cache store.CacheRepository, transport SyncTransport, log *logger.Logger) *ClientSyncService {
	return &ClientSyncService{cache: cache, transport: transport, logger: log}
}

// VerifyServer compares the pinned fingerprint of a storage against what
// the server currently reports. A mismatch aborts all syncing for the
// storage; only the user can re-pin.
func (s *ClientSyncService) VerifyServer(ctx context.Context, storageID uuid.UUID) error {
	storage, err := s.cache.GetStorage(ctx, storageID)
	if err != nil {
		return err
	}
	if storage.ServerFingerprint == "" {
		return nil
	}

	meta, err := s.transport.Meta(ctx)
	if err != nil {
		return err
	}
	if meta.Fingerprint != storage.ServerFingerprint {
		return ErrFingerprintMismatch
	}
	return nil
}

// SyncVault runs one full push-then-pull cycle for a vault. vaultKey is
// optional: when present, pulled rows get a cache-key fingerprint so later
// reads can detect key rotation; a headless mirror can pass nil.
func (s *ClientSyncService) SyncVault(ctx context.Context, storageID, vaultID uuid.UUID, vaultKey *crypto.SecretKey) error {
	if err := s.pushPending(ctx, storageID, vaultID); err != nil {
		return err
	}
	return s.pullChanges(ctx, storageID, vaultID, vaultKey)
}

// pushPending drains the pending queue in insertion order. Applied changes
// delete their pending rows and advance the item's observed seq; conflicts
// mark the item for the UI and keep the local payload untouched.
func (s *ClientSyncService) pushPending(ctx context.Context, storageID, vaultID uuid.UUID) error {
	log := logger.FromContext(ctx)

	pending, err := s.cache.ListPendingByVault(ctx, storageID, vaultID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	req := &models.SyncPushRequest{
		VaultID: vaultID,
		Changes: make([]models.SyncPushChange, 0, len(pending)),
	}
	for i := range pending {
		change := &pending[i]
		req.Changes = append(req.Changes, models.SyncPushChange{
			ItemID:     change.ItemID,
			Operation:  change.Operation,
			PayloadEnc: change.PayloadEnc,
			Checksum:   change.Checksum,
			Path:       change.Path,
			Name:       change.Name,
			TypeID:     change.TypeID,
			BaseSeq:    change.BaseSeq,
		})
	}

	resp, err := s.transport.Push(ctx, req)
	if err != nil {
		return err
	}

	appliedSeq := make(map[uuid.UUID]models.SyncAppliedChange, len(resp.AppliedChanges))
	for _, applied := range resp.AppliedChanges {
		id, err := uuid.Parse(applied.ItemID)
		if err != nil {
			continue
		}
		appliedSeq[id] = applied
	}

	dropIDs := make([]uuid.UUID, 0, len(pending))
	for i := range pending {
		change := &pending[i]
		applied, ok := appliedSeq[change.ItemID]
		if !ok {
			continue
		}
		dropIDs = append(dropIDs, change.ID)

		item, err := s.cache.GetItem(ctx, storageID, change.ItemID)
		if errors.Is(err, store.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		item.LastSeq = applied.Seq
		item.UpdatedAt = applied.UpdatedAt
		item.DeletedAt = applied.DeletedAt
		if applied.DeletedAt != nil {
			item.SyncStatus = models.StatusTombstone
		} else {
			item.SyncStatus = models.StatusSynced
		}
		if err := s.cache.UpsertItem(ctx, item); err != nil {
			return err
		}
	}
	if err := s.cache.DeletePendingByIDs(ctx, dropIDs); err != nil {
		return err
	}

	for _, conflict := range resp.Conflicts {
		id, err := uuid.Parse(conflict.ItemID)
		if err != nil {
			continue
		}
		if err := s.cache.SetItemStatus(ctx, storageID, id, models.StatusConflict); err != nil &&
			!errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		log.Warn().
			Str("item_id", conflict.ItemID).
			Str("reason", conflict.Reason).
			Int64("server_seq", conflict.ServerSeq).
			Msg("sync push conflict")
	}

	log.Debug().
		Str("vault_id", vaultID.String()).
		Int("applied", len(resp.Applied)).
		Int("conflicts", len(resp.Conflicts)).
		Msg("pending changes pushed")
	return nil
}

// pullChanges consumes the journal behind the saved cursor until the
// server reports no more pages, applying each change to the cache.
func (s *ClientSyncService) pullChanges(ctx context.Context, storageID, vaultID uuid.UUID, vaultKey *crypto.SecretKey) error {
	log := logger.FromContext(ctx)

	cursor, err := s.cache.GetCursor(ctx, storageID, vaultID)
	if err != nil {
		return err
	}

	fingerprint := ""
	if vaultKey != nil {
		fingerprint = crypto.CacheKeyFingerprint(vaultKey)
	}

	for {
		resp, err := s.transport.Pull(ctx, &models.SyncPullRequest{
			VaultID: vaultID,
			Cursor:  cursor.Cursor,
			Limit:   models.DefaultSyncLimit,
		})
		if err != nil {
			return err
		}

		for i := range resp.Changes {
			if err := s.applyPulledChange(ctx, storageID, vaultID, &resp.Changes[i], fingerprint); err != nil {
				return err
			}
		}

		cursor.Cursor = resp.NextCursor
		syncedAt := now()
		cursor.LastSyncAt = &syncedAt
		if err := s.cache.SaveCursor(ctx, cursor); err != nil {
			return err
		}

		log.Debug().
			Str("vault_id", vaultID.String()).
			Int("changes", len(resp.Changes)).
			Bool("has_more", resp.HasMore).
			Msg("pulled journal page")
		if !resp.HasMore {
			return nil
		}
	}
}

// applyPulledChange folds one journal change into the cache. Rows with
// unsynced local edits are not overwritten; a diverging server payload
// flips them to Conflict for the UI to resolve.
func (s *ClientSyncService) applyPulledChange(ctx context.Context, storageID, vaultID uuid.UUID, change *models.SyncPullChange, fingerprint string) error {
	itemID, err := uuid.Parse(change.ItemID)
	if err != nil {
		return ErrInvalidPayload
	}

	existing, err := s.cache.GetItem(ctx, storageID, itemID)
	if err != nil && !errors.Is(err, store.ErrItemNotFound) {
		return err
	}

	if existing != nil && existing.SyncStatus == models.StatusModified && existing.Checksum != change.Checksum {
		return s.cache.SetItemStatus(ctx, storageID, itemID, models.StatusConflict)
	}
	if existing != nil && existing.SyncStatus == models.StatusLocalDeleted {
		// The queued delete will settle this item on the next push.
		return nil
	}

	item := &models.LocalItem{
		ID:         itemID,
		StorageID:  storageID,
		VaultID:    vaultID,
		Path:       change.Path,
		Name:       change.Name,
		TypeID:     change.TypeID,
		PayloadEnc: change.PayloadEnc,
		Checksum:   change.Checksum,
		CacheKeyFP: fingerprint,
		Version:    1,
		LastSeq:    change.Seq,
		UpdatedAt:  change.UpdatedAt,
		SyncStatus: models.StatusSynced,
	}
	if existing != nil {
		item.Version = existing.Version
		if change.PayloadEnc == nil {
			item.PayloadEnc = existing.PayloadEnc
			item.Checksum = existing.Checksum
			item.CacheKeyFP = existing.CacheKeyFP
		}
	}
	if change.Operation == models.ChangeDelete {
		deletedAt := change.UpdatedAt
		item.DeletedAt = &deletedAt
		item.SyncStatus = models.StatusTombstone
	}
	if err := s.cache.UpsertItem(ctx, item); err != nil {
		return err
	}

	if len(change.History) > 0 {
		entries := make([]models.LocalItemHistory, 0, len(change.History))
		for _, wire := range change.History {
			entries = append(entries, models.LocalItemHistory{
				ID:             newItemID(),
				StorageID:      storageID,
				VaultID:        vaultID,
				ItemID:         itemID,
				PayloadEnc:     wire.PayloadEnc,
				Checksum:       wire.Checksum,
				Version:        wire.Version,
				ChangeType:     wire.ChangeType,
				ChangedByEmail: wire.ChangedByEmail,
				ChangedByName:  wire.ChangedByName,
				CreatedAt:      wire.CreatedAt,
			})
		}
		return s.cache.ReplaceItemHistory(ctx, storageID, vaultID, itemID, entries)
	}
	return nil
}
