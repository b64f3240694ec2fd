// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

// CacheService is the client-side mirror logic: local mutations that seal
// payloads under the vault key, queue pending changes, and keep the
// at-most-once apply semantics of the sync engine intact.
type CacheService struct {
	cache  store.CacheRepository
	logger *logger.Logger
}

// NewCacheService constructs a [CacheService].
func NewCacheService(cache store.CacheRepository, log *logger.Logger) *CacheService {
	return &CacheService{cache: cache, logger: log}
}

// PutItem upserts by (vault_id, path). An existing live item gets a pending
// update carrying the last observed journal seq; a new path gets a pending
// create with no base seq. Either way the row is marked Modified.
func (s *CacheService) PutItem(ctx context.Context, storageID, vaultID uuid.UUID, path, typeID string, payload []byte, vaultKey *crypto.SecretKey) (*models.LocalItem, error) {
	path = NormalizePath(path)
	if path == "" {
		return nil, ErrPathRequired
	}

	existing, err := s.cache.GetItemByPath(ctx, storageID, vaultID, path)
	if err != nil && !errors.Is(err, store.ErrItemNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.updateLocal(ctx, existing, path, typeID, payload, vaultKey)
	}
	return s.createLocal(ctx, storageID, vaultID, path, typeID, payload, vaultKey)
}

// UpdateItemByID behaves like PutItem but is keyed by item id, which allows
// a rename: newPath, when non-empty, replaces the stored path.
func (s *CacheService) UpdateItemByID(ctx context.Context, storageID, itemID uuid.UUID, newPath, typeID string, payload []byte, vaultKey *crypto.SecretKey) (*models.LocalItem, error) {
	item, err := s.cache.GetItem(ctx, storageID, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	path := item.Path
	if p := NormalizePath(newPath); p != "" {
		path = p
	}
	return s.updateLocal(ctx, item, path, typeID, payload, vaultKey)
}

// DeleteItem marks an item LocalDeleted and queues a delete. A delete over
// a still-unsynced create collapses to a local hard delete: the server
// never learns the item existed.
func (s *CacheService) DeleteItem(ctx context.Context, storageID, itemID uuid.UUID) error {
	log := logger.FromContext(ctx)

	item, err := s.cache.GetItem(ctx, storageID, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	pending, err := s.cache.ListPendingByItem(ctx, storageID, itemID)
	if err != nil {
		return err
	}
	for i := range pending {
		if pending[i].Operation == models.ChangeCreate && pending[i].BaseSeq == nil {
			log.Debug().
				Str("item_id", itemID.String()).
				Msg("collapsing delete over unsynced create")
			if err := s.cache.DeletePendingByItem(ctx, storageID, itemID); err != nil {
				return err
			}
			return s.cache.HardDeleteItem(ctx, storageID, itemID)
		}
	}

	if err := s.cache.SetItemStatus(ctx, storageID, itemID, models.StatusLocalDeleted); err != nil {
		return err
	}
	baseSeq := item.LastSeq
	return s.cache.CreatePending(ctx, &models.LocalPendingChange{
		ID:        utils.NewUUID(),
		StorageID: storageID,
		VaultID:   item.VaultID,
		ItemID:    itemID,
		Operation: models.ChangeDelete,
		BaseSeq:   &baseSeq,
		CreatedAt: now(),
	})
}

// ReadItemPayload opens a cached payload with the caller's vault key. A
// fingerprint mismatch means the vault key rotated since the row was
// cached; the row is refused rather than fed to the AEAD.
func (s *CacheService) ReadItemPayload(ctx context.Context, storageID, itemID uuid.UUID, vaultKey *crypto.SecretKey) ([]byte, error) {
	item, err := s.cache.GetItem(ctx, storageID, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	if item.CacheKeyFP != "" && item.CacheKeyFP != crypto.CacheKeyFingerprint(vaultKey) {
		return nil, ErrVaultKeyDecryptFailed
	}
	plaintext, err := crypto.DecryptPayload(vaultKey, item.VaultID, item.ID, item.PayloadEnc)
	if err != nil {
		return nil, ErrVaultKeyDecryptFailed
	}
	return plaintext, nil
}

// ResolveConflict re-enqueues the current local payload of a conflicted
// item as a fresh update against the latest observed server seq.
func (s *CacheService) ResolveConflict(ctx context.Context, storageID, itemID uuid.UUID) error {
	item, err := s.cache.GetItem(ctx, storageID, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}
	if item.SyncStatus != models.StatusConflict {
		return nil
	}

	if err := s.cache.DeletePendingByItem(ctx, storageID, itemID); err != nil {
		return err
	}

	baseSeq := item.LastSeq
	change := &models.LocalPendingChange{
		ID:         utils.NewUUID(),
		StorageID:  storageID,
		VaultID:    item.VaultID,
		ItemID:     itemID,
		Operation:  models.ChangeUpdate,
		PayloadEnc: item.PayloadEnc,
		Checksum:   item.Checksum,
		Path:       item.Path,
		Name:       item.Name,
		TypeID:     item.TypeID,
		BaseSeq:    &baseSeq,
		CreatedAt:  now(),
	}
	if item.LastSeq == 0 {
		change.Operation = models.ChangeCreate
		change.BaseSeq = nil
	}
	if err := s.cache.CreatePending(ctx, change); err != nil {
		return err
	}
	return s.cache.SetItemStatus(ctx, storageID, itemID, models.StatusModified)
}

func (s *CacheService) createLocal(ctx context.Context, storageID, vaultID uuid.UUID, path, typeID string, payload []byte, vaultKey *crypto.SecretKey) (*models.LocalItem, error) {
	itemID := utils.NewUUID()
	payloadEnc, err := crypto.EncryptPayload(vaultKey, vaultID, itemID, payload)
	if err != nil {
		return nil, err
	}

	item := &models.LocalItem{
		ID:         itemID,
		StorageID:  storageID,
		VaultID:    vaultID,
		Path:       path,
		Name:       BasenameFromPath(path),
		TypeID:     typeID,
		PayloadEnc: payloadEnc,
		Checksum:   crypto.PayloadChecksum(payloadEnc),
		CacheKeyFP: crypto.CacheKeyFingerprint(vaultKey),
		Version:    1,
		UpdatedAt:  now(),
		SyncStatus: models.StatusModified,
	}
	if err := s.cache.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	err = s.cache.CreatePending(ctx, &models.LocalPendingChange{
		ID:         utils.NewUUID(),
		StorageID:  storageID,
		VaultID:    vaultID,
		ItemID:     itemID,
		Operation:  models.ChangeCreate,
		PayloadEnc: payloadEnc,
		Checksum:   item.Checksum,
		Path:       path,
		Name:       item.Name,
		TypeID:     typeID,
		CreatedAt:  now(),
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CacheService) updateLocal(ctx context.Context, item *models.LocalItem, path, typeID string, payload []byte, vaultKey *crypto.SecretKey) (*models.LocalItem, error) {
	payloadEnc, err := crypto.EncryptPayload(vaultKey, item.VaultID, item.ID, payload)
	if err != nil {
		return nil, err
	}

	item.Path = path
	item.Name = BasenameFromPath(path)
	if typeID != "" {
		item.TypeID = typeID
	}
	item.PayloadEnc = payloadEnc
	item.Checksum = crypto.PayloadChecksum(payloadEnc)
	item.CacheKeyFP = crypto.CacheKeyFingerprint(vaultKey)
	item.Version++
	item.UpdatedAt = now()
	item.SyncStatus = models.StatusModified

	if err := s.cache.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	baseSeq := item.LastSeq
	change := &models.LocalPendingChange{
		ID:         utils.NewUUID(),
		StorageID:  item.StorageID,
		VaultID:    item.VaultID,
		ItemID:     item.ID,
		Operation:  models.ChangeUpdate,
		PayloadEnc: payloadEnc,
		Checksum:   item.Checksum,
		Path:       item.Path,
		Name:       item.Name,
		TypeID:     item.TypeID,
		BaseSeq:    &baseSeq,
		CreatedAt:  now(),
	}
	if item.LastSeq == 0 {
		// Never synced: keep it a create so the server sees one coherent
		// birth instead of an update for an unknown id.
		change.Operation = models.ChangeCreate
		change.BaseSeq = nil
	}
	if err := s.cache.CreatePending(ctx, change); err != nil {
		return nil, err
	}
	return item, nil
}
