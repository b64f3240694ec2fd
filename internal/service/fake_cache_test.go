// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// fakeCache is an in-memory store.CacheRepository for exercising the client
// services without SQLite.
type fakeCache struct {
	storages map[uuid.UUID]models.LocalStorage
	vaults   map[uuid.UUID]models.LocalVault
	items    map[uuid.UUID]models.LocalItem
	pending  []models.LocalPendingChange
	cursors  map[uuid.UUID]models.LocalSyncCursor
	history  map[uuid.UUID][]models.LocalItemHistory
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		storages: map[uuid.UUID]models.LocalStorage{},
		vaults:   map[uuid.UUID]models.LocalVault{},
		items:    map[uuid.UUID]models.LocalItem{},
		cursors:  map[uuid.UUID]models.LocalSyncCursor{},
		history:  map[uuid.UUID][]models.LocalItemHistory{},
	}
}

func (f *fakeCache) UpsertStorage(_ context.Context, storage *models.LocalStorage) error {
	f.storages[storage.ID] = *storage
	return nil
}

func (f *fakeCache) GetStorage(_ context.Context, id uuid.UUID) (*models.LocalStorage, error) {
	storage, ok := f.storages[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return &storage, nil
}

func (f *fakeCache) UpsertVault(_ context.Context, vault *models.LocalVault) error {
	f.vaults[vault.ID] = *vault
	return nil
}

func (f *fakeCache) GetVault(_ context.Context, _, vaultID uuid.UUID) (*models.LocalVault, error) {
	vault, ok := f.vaults[vaultID]
	if !ok {
		return nil, store.ErrVaultNotFound
	}
	return &vault, nil
}

func (f *fakeCache) ListVaults(_ context.Context, storageID uuid.UUID) ([]models.LocalVault, error) {
	out := make([]models.LocalVault, 0, len(f.vaults))
	for _, vault := range f.vaults {
		if vault.StorageID == storageID {
			out = append(out, vault)
		}
	}
	return out, nil
}

func (f *fakeCache) GetItem(_ context.Context, _, itemID uuid.UUID) (*models.LocalItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return &item, nil
}

func (f *fakeCache) GetItemByPath(_ context.Context, storageID, vaultID uuid.UUID, path string) (*models.LocalItem, error) {
	for _, item := range f.items {
		if item.StorageID == storageID && item.VaultID == vaultID && item.Path == path && item.DeletedAt == nil {
			return &item, nil
		}
	}
	return nil, store.ErrItemNotFound
}

func (f *fakeCache) ListItems(_ context.Context, storageID, vaultID uuid.UUID) ([]models.LocalItem, error) {
	out := make([]models.LocalItem, 0, len(f.items))
	for _, item := range f.items {
		if item.StorageID == storageID && item.VaultID == vaultID && item.DeletedAt == nil {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeCache) UpsertItem(_ context.Context, item *models.LocalItem) error {
	f.items[item.ID] = *item
	return nil
}

func (f *fakeCache) SetItemStatus(_ context.Context, _, itemID uuid.UUID, status models.SyncStatus) error {
	item, ok := f.items[itemID]
	if !ok {
		return store.ErrItemNotFound
	}
	item.SyncStatus = status
	item.UpdatedAt = time.Now().UTC()
	f.items[itemID] = item
	return nil
}

func (f *fakeCache) HardDeleteItem(_ context.Context, _, itemID uuid.UUID) error {
	delete(f.items, itemID)
	return nil
}

func (f *fakeCache) CreatePending(_ context.Context, change *models.LocalPendingChange) error {
	f.pending = append(f.pending, *change)
	return nil
}

func (f *fakeCache) ListPendingByVault(_ context.Context, storageID, vaultID uuid.UUID) ([]models.LocalPendingChange, error) {
	out := make([]models.LocalPendingChange, 0, len(f.pending))
	for _, change := range f.pending {
		if change.StorageID == storageID && change.VaultID == vaultID {
			out = append(out, change)
		}
	}
	return out, nil
}

func (f *fakeCache) ListPendingByItem(_ context.Context, storageID, itemID uuid.UUID) ([]models.LocalPendingChange, error) {
	out := make([]models.LocalPendingChange, 0, len(f.pending))
	for _, change := range f.pending {
		if change.StorageID == storageID && change.ItemID == itemID {
			out = append(out, change)
		}
	}
	return out, nil
}

func (f *fakeCache) DeletePendingByIDs(_ context.Context, ids []uuid.UUID) error {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.pending[:0]
	for _, change := range f.pending {
		if !drop[change.ID] {
			kept = append(kept, change)
		}
	}
	f.pending = kept
	return nil
}

func (f *fakeCache) DeletePendingByItem(_ context.Context, storageID, itemID uuid.UUID) error {
	kept := f.pending[:0]
	for _, change := range f.pending {
		if !(change.StorageID == storageID && change.ItemID == itemID) {
			kept = append(kept, change)
		}
	}
	f.pending = kept
	return nil
}

func (f *fakeCache) GetCursor(_ context.Context, storageID, vaultID uuid.UUID) (*models.LocalSyncCursor, error) {
	cursor, ok := f.cursors[vaultID]
	if !ok {
		return &models.LocalSyncCursor{StorageID: storageID, VaultID: vaultID}, nil
	}
	return &cursor, nil
}

func (f *fakeCache) SaveCursor(_ context.Context, cursor *models.LocalSyncCursor) error {
	f.cursors[cursor.VaultID] = *cursor
	return nil
}

func (f *fakeCache) ReplaceItemHistory(_ context.Context, _, _, itemID uuid.UUID, entries []models.LocalItemHistory) error {
	f.history[itemID] = append([]models.LocalItemHistory(nil), entries...)
	return nil
}

func (f *fakeCache) ListItemHistory(_ context.Context, _, itemID uuid.UUID) ([]models.LocalItemHistory, error) {
	return f.history[itemID], nil
}
