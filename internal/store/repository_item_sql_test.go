// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &DB{DB: conn, logger: logger.Nop()}, mock
}

func itemRows(item *models.Item) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "vault_id", "path", "name", "type_id", "payload_enc", "checksum",
		"version", "row_version", "sync_status", "deleted_at", "created_at", "updated_at",
		"rotation_state", "rotation_candidate_enc", "rotation_started_at", "rotation_started_by",
		"rotation_expires_at", "rotation_recover_until", "rotation_aborted_reason",
	}).AddRow(
		item.ID, item.VaultID, item.Path, item.Name, item.TypeID, item.PayloadEnc, item.Checksum,
		item.Version, item.RowVersion, int32(item.SyncStatus), nil, item.CreatedAt, item.UpdatedAt,
		nil, nil, nil, nil, nil, nil, nil,
	)
}

func TestGetItemScansRotationColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemRepository(db, logger.Nop())

	item := &models.Item{
		ID: uuid.New(), VaultID: uuid.New(), Path: "db/password", Name: "password",
		TypeID: "login", PayloadEnc: []byte("blob"), Checksum: "c1",
		Version: 3, RowVersion: 3, SyncStatus: models.StatusActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	mock.ExpectQuery(`SELECT .+ FROM items`).
		WithArgs(item.ID).
		WillReturnRows(itemRows(item))

	got, err := repo.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Path, got.Path)
	assert.Equal(t, models.RotationActive, got.Rotation.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemRepository(db, logger.Nop())

	mock.ExpectQuery(`SELECT .+ FROM items`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMaxSeq(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemRepository(db, logger.Nop())
	vaultID := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\)`).
		WithArgs(vaultID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(17)))

	seq, err := repo.MaxSeq(context.Background(), vaultID)
	require.NoError(t, err)
	assert.EqualValues(t, 17, seq)
}

func TestListChangesAfterScansJournal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemRepository(db, logger.Nop())
	vaultID, itemID := uuid.New(), uuid.New()
	ts := time.Now().UTC()

	mock.ExpectQuery(`SELECT c.seq, c.op, c.item_id`).
		WithArgs(vaultID, int64(0), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{
			"seq", "op", "item_id", "version", "created_at",
			"path", "name", "type_id", "payload_enc", "checksum", "updated_at", "deleted_at",
		}).AddRow(
			int64(1), int32(models.ChangeCreate), itemID, int64(1), ts,
			"db/password", "password", "login", []byte("blob"), "c1", ts, nil,
		).AddRow(
			int64(2), int32(models.ChangeDelete), itemID, int64(2), ts,
			"db/password", "password", "login", []byte("blob"), "c1", ts, ts,
		))

	rows, err := repo.ListChangesAfter(context.Background(), vaultID, 0, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ChangeCreate, rows[0].Op)
	assert.Nil(t, rows[0].DeletedAt)
	assert.Equal(t, models.ChangeDelete, rows[1].Op)
	assert.NotNil(t, rows[1].DeletedAt)
	assert.True(t, rows[0].Seq < rows[1].Seq)
}

func TestPurgeItemNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemRepository(db, logger.Nop())

	mock.ExpectExec(`DELETE FROM items`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.PurgeItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestHistoryPruneOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db, logger.Nop())
	cutoff := time.Now().UTC().AddDate(0, 0, -90)

	mock.ExpectExec(`DELETE FROM item_history WHERE created_at <`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	pruned, err := repo.PruneOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 12, pruned)
}

func TestRotationStartConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRotationRepository(db, logger.Nop())

	mock.ExpectExec(`UPDATE items`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Start(context.Background(), uuid.New(), []byte("enc"), uuid.New(),
		time.Now().Add(15*time.Minute), time.Now().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrRotationConflict)
}

func TestVaultGetMemberRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVaultRepository(db, logger.Nop())
	vaultID, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT role`).
		WithArgs(vaultID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(int32(models.RoleOperator)))

	role, err := repo.GetMemberRole(context.Background(), vaultID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, role)

	mock.ExpectQuery(`SELECT role`).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))
	_, err = repo.GetMemberRole(context.Background(), vaultID, userID)
	assert.ErrorIs(t, err, ErrVaultNotFound)
}
