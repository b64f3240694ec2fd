// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

func newCacheFixture(t *testing.T) (*CacheService, *fakeCache, *crypto.SecretKey, uuid.UUID, uuid.UUID) {
	t.Helper()
	cache := newFakeCache()
	vaultKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewCacheService(cache, logger.Nop()), cache, vaultKey, uuid.New(), uuid.New()
}

func TestPutItemCreatesWithPendingCreate(t *testing.T) {
	svc, cache, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	item, err := svc.PutItem(ctx, storageID, vaultID, "/db/password/", "login", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)

	assert.Equal(t, "db/password", item.Path)
	assert.Equal(t, "password", item.Name)
	assert.Equal(t, models.StatusModified, item.SyncStatus)
	assert.Equal(t, crypto.CacheKeyFingerprint(vaultKey), item.CacheKeyFP)
	assert.Equal(t, crypto.PayloadChecksum(item.PayloadEnc), item.Checksum)

	require.Len(t, cache.pending, 1)
	assert.Equal(t, models.ChangeCreate, cache.pending[0].Operation)
	assert.Nil(t, cache.pending[0].BaseSeq)
}

func TestPutItemUpsertsByPath(t *testing.T) {
	svc, cache, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	first, err := svc.PutItem(ctx, storageID, vaultID, "db/password", "login", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)

	// Simulate a completed sync so the next edit becomes an update.
	first.SyncStatus = models.StatusSynced
	first.LastSeq = 4
	require.NoError(t, cache.UpsertItem(ctx, first))
	cache.pending = nil

	second, err := svc.PutItem(ctx, storageID, vaultID, "db/password", "login", []byte(`{"v":2}`), vaultKey)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Version+1, second.Version)
	require.Len(t, cache.pending, 1)
	assert.Equal(t, models.ChangeUpdate, cache.pending[0].Operation)
	require.NotNil(t, cache.pending[0].BaseSeq)
	assert.EqualValues(t, 4, *cache.pending[0].BaseSeq)
}

func TestDeleteCollapsesUnsyncedCreate(t *testing.T) {
	svc, cache, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	item, err := svc.PutItem(ctx, storageID, vaultID, "ephemeral", "note", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)

	// The create never reached the server; deleting must leave no trace
	// and no server round trip.
	require.NoError(t, svc.DeleteItem(ctx, storageID, item.ID))

	assert.Empty(t, cache.pending)
	_, err = cache.GetItem(ctx, storageID, item.ID)
	assert.Error(t, err)
}

func TestDeleteSyncedItemQueuesDelete(t *testing.T) {
	svc, cache, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	item, err := svc.PutItem(ctx, storageID, vaultID, "db/password", "login", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)
	item.SyncStatus = models.StatusSynced
	item.LastSeq = 9
	require.NoError(t, cache.UpsertItem(ctx, item))
	cache.pending = nil

	require.NoError(t, svc.DeleteItem(ctx, storageID, item.ID))

	got, err := cache.GetItem(ctx, storageID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLocalDeleted, got.SyncStatus)

	require.Len(t, cache.pending, 1)
	assert.Equal(t, models.ChangeDelete, cache.pending[0].Operation)
	require.NotNil(t, cache.pending[0].BaseSeq)
	assert.EqualValues(t, 9, *cache.pending[0].BaseSeq)
}

func TestReadItemPayloadRefusesRotatedKey(t *testing.T) {
	svc, _, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	item, err := svc.PutItem(ctx, storageID, vaultID, "db/password", "login", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)

	plaintext, err := svc.ReadItemPayload(ctx, storageID, item.ID, vaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(plaintext))

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = svc.ReadItemPayload(ctx, storageID, item.ID, otherKey)
	assert.ErrorIs(t, err, ErrVaultKeyDecryptFailed)
}

func TestResolveConflictReenqueues(t *testing.T) {
	svc, cache, vaultKey, storageID, vaultID := newCacheFixture(t)
	ctx := context.Background()

	item, err := svc.PutItem(ctx, storageID, vaultID, "db/password", "login", []byte(`{"v":1}`), vaultKey)
	require.NoError(t, err)
	item.SyncStatus = models.StatusConflict
	item.LastSeq = 12
	require.NoError(t, cache.UpsertItem(ctx, item))
	cache.pending = nil

	require.NoError(t, svc.ResolveConflict(ctx, storageID, item.ID))

	got, err := cache.GetItem(ctx, storageID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusModified, got.SyncStatus)

	require.Len(t, cache.pending, 1)
	assert.Equal(t, models.ChangeUpdate, cache.pending[0].Operation)
	require.NotNil(t, cache.pending[0].BaseSeq)
	assert.EqualValues(t, 12, *cache.pending[0].BaseSeq)
}
