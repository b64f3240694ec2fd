// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

func newTestCache(t *testing.T) CacheRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := NewConnectSQLite(context.Background(), path, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return NewCacheRepository(db, logger.Nop())
}

func TestCacheItemRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	storageID, vaultID := uuid.New(), uuid.New()

	item := &models.LocalItem{
		ID:         uuid.New(),
		StorageID:  storageID,
		VaultID:    vaultID,
		Path:       "db/password",
		Name:       "password",
		TypeID:     "login",
		PayloadEnc: []byte("blob"),
		Checksum:   "c1",
		CacheKeyFP: "abcdef012345",
		Version:    1,
		LastSeq:    4,
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
		SyncStatus: models.StatusSynced,
	}
	require.NoError(t, cache.UpsertItem(ctx, item))

	got, err := cache.GetItem(ctx, storageID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Path, got.Path)
	assert.Equal(t, item.PayloadEnc, got.PayloadEnc)
	assert.Equal(t, item.CacheKeyFP, got.CacheKeyFP)
	assert.EqualValues(t, 4, got.LastSeq)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)

	byPath, err := cache.GetItemByPath(ctx, storageID, vaultID, "db/password")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byPath.ID)

	_, err = cache.GetItemByPath(ctx, storageID, vaultID, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCachePendingQueueOrder(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	storageID, vaultID, itemID := uuid.New(), uuid.New(), uuid.New()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, cache.CreatePending(ctx, &models.LocalPendingChange{
			ID:        uuid.New(),
			StorageID: storageID,
			VaultID:   vaultID,
			ItemID:    itemID,
			Operation: models.ChangeUpdate,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	pending, err := cache.ListPendingByVault(ctx, storageID, vaultID)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.True(t, pending[0].CreatedAt.Before(pending[2].CreatedAt))

	require.NoError(t, cache.DeletePendingByIDs(ctx, []uuid.UUID{pending[0].ID, pending[1].ID}))
	left, err := cache.ListPendingByItem(ctx, storageID, itemID)
	require.NoError(t, err)
	assert.Len(t, left, 1)

	require.NoError(t, cache.DeletePendingByItem(ctx, storageID, itemID))
	left, err = cache.ListPendingByItem(ctx, storageID, itemID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCacheCursorDefaultsAndSaves(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	storageID, vaultID := uuid.New(), uuid.New()

	cursor, err := cache.GetCursor(ctx, storageID, vaultID)
	require.NoError(t, err)
	assert.Empty(t, cursor.Cursor)

	syncedAt := time.Now().UTC().Truncate(time.Second)
	cursor.Cursor = "b64cursor"
	cursor.LastSyncAt = &syncedAt
	require.NoError(t, cache.SaveCursor(ctx, cursor))

	got, err := cache.GetCursor(ctx, storageID, vaultID)
	require.NoError(t, err)
	assert.Equal(t, "b64cursor", got.Cursor)
	require.NotNil(t, got.LastSyncAt)
}

func TestCacheItemHistoryReplace(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	storageID, vaultID, itemID := uuid.New(), uuid.New(), uuid.New()

	entries := []models.LocalItemHistory{
		{ID: uuid.New(), Version: 2, ChangeType: models.ChangeUpdate, ChangedByEmail: "a@x", PayloadEnc: []byte("v2"), CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: uuid.New(), Version: 1, ChangeType: models.ChangeUpdate, ChangedByEmail: "a@x", PayloadEnc: []byte("v1"), CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	require.NoError(t, cache.ReplaceItemHistory(ctx, storageID, vaultID, itemID, entries))

	got, err := cache.ListItemHistory(ctx, storageID, itemID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 2, got[0].Version)

	require.NoError(t, cache.ReplaceItemHistory(ctx, storageID, vaultID, itemID, entries[:1]))
	got, err = cache.ListItemHistory(ctx, storageID, itemID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
