// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

// CacheRepository is the SQLite-backed local mirror: cached items, the
// pending-change queue, per-vault sync cursors, storage handles, and the
// history shipped with pulls.
type CacheRepository interface {
	UpsertStorage(ctx context.Context, storage *models.LocalStorage) error
	GetStorage(ctx context.Context, id uuid.UUID) (*models.LocalStorage, error)

	UpsertVault(ctx context.Context, vault *models.LocalVault) error
	GetVault(ctx context.Context, storageID, vaultID uuid.UUID) (*models.LocalVault, error)
	ListVaults(ctx context.Context, storageID uuid.UUID) ([]models.LocalVault, error)

	GetItem(ctx context.Context, storageID, itemID uuid.UUID) (*models.LocalItem, error)
	GetItemByPath(ctx context.Context, storageID, vaultID uuid.UUID, path string) (*models.LocalItem, error)
	ListItems(ctx context.Context, storageID, vaultID uuid.UUID) ([]models.LocalItem, error)
	UpsertItem(ctx context.Context, item *models.LocalItem) error
	SetItemStatus(ctx context.Context, storageID, itemID uuid.UUID, status models.SyncStatus) error
	HardDeleteItem(ctx context.Context, storageID, itemID uuid.UUID) error

	CreatePending(ctx context.Context, change *models.LocalPendingChange) error
	ListPendingByVault(ctx context.Context, storageID, vaultID uuid.UUID) ([]models.LocalPendingChange, error)
	ListPendingByItem(ctx context.Context, storageID, itemID uuid.UUID) ([]models.LocalPendingChange, error)
	DeletePendingByIDs(ctx context.Context, ids []uuid.UUID) error
	DeletePendingByItem(ctx context.Context, storageID, itemID uuid.UUID) error

	GetCursor(ctx context.Context, storageID, vaultID uuid.UUID) (*models.LocalSyncCursor, error)
	SaveCursor(ctx context.Context, cursor *models.LocalSyncCursor) error

	ReplaceItemHistory(ctx context.Context, storageID, vaultID, itemID uuid.UUID, entries []models.LocalItemHistory) error
	ListItemHistory(ctx context.Context, storageID, itemID uuid.UUID) ([]models.LocalItemHistory, error)
}

type cacheRepository struct {
	*DB
	logger *logger.Logger
}

// NewCacheRepository constructs a [CacheRepository] on an open SQLite
// connection.
func NewCacheRepository(db *DB, log *logger.Logger) CacheRepository {
	return &cacheRepository{DB: db, logger: log}
}

func (r *cacheRepository) UpsertStorage(ctx context.Context, storage *models.LocalStorage) error {
	_, err := r.ExecContext(ctx, cacheUpsertStorage,
		storage.ID.String(), int32(storage.Kind), storage.Name,
		storage.ServerURL, storage.ServerName, storage.ServerFingerprint, storage.AccountSubject,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) GetStorage(ctx context.Context, id uuid.UUID) (*models.LocalStorage, error) {
	var (
		storage models.LocalStorage
		rawID   string
		kind    int32
	)
	err := r.QueryRowContext(ctx, cacheGetStorage, id.String()).Scan(
		&rawID, &kind, &storage.Name, &storage.ServerURL,
		&storage.ServerName, &storage.ServerFingerprint, &storage.AccountSubject,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if storage.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if storage.Kind, err = models.ParseStorageKind(kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return &storage, nil
}

func (r *cacheRepository) UpsertVault(ctx context.Context, vault *models.LocalVault) error {
	_, err := r.ExecContext(ctx, cacheUpsertVault,
		vault.ID.String(), vault.StorageID.String(), vault.Slug, vault.Name,
		int32(vault.Kind), int32(vault.CachePolicy), vault.VaultKeyEnc, nullTime(vault.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) GetVault(ctx context.Context, storageID, vaultID uuid.UUID) (*models.LocalVault, error) {
	vault, err := scanLocalVault(r.QueryRowContext(ctx, cacheGetVault, storageID.String(), vaultID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVaultNotFound
	}
	return vault, err
}

func (r *cacheRepository) ListVaults(ctx context.Context, storageID uuid.UUID) ([]models.LocalVault, error) {
	rows, err := r.QueryContext(ctx, cacheListVaults, storageID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	vaults := make([]models.LocalVault, 0, 8)
	for rows.Next() {
		vault, err := scanLocalVault(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return vaults, nil
}

func (r *cacheRepository) GetItem(ctx context.Context, storageID, itemID uuid.UUID) (*models.LocalItem, error) {
	item, err := scanLocalItem(r.QueryRowContext(ctx, cacheGetItem, storageID.String(), itemID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

func (r *cacheRepository) GetItemByPath(ctx context.Context, storageID, vaultID uuid.UUID, path string) (*models.LocalItem, error) {
	item, err := scanLocalItem(r.QueryRowContext(ctx, cacheGetItemByPath, storageID.String(), vaultID.String(), path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

func (r *cacheRepository) ListItems(ctx context.Context, storageID, vaultID uuid.UUID) ([]models.LocalItem, error) {
	log := logger.FromContext(ctx)

	rows, err := r.QueryContext(ctx, cacheListItems, storageID.String(), vaultID.String())
	if err != nil {
		log.Err(err).
			Str("func", "cacheRepository.ListItems").
			Str("vault_id", vaultID.String()).
			Msg("failed to list cached items")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	items := make([]models.LocalItem, 0, 32)
	for rows.Next() {
		item, err := scanLocalItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return items, nil
}

func (r *cacheRepository) UpsertItem(ctx context.Context, item *models.LocalItem) error {
	_, err := r.ExecContext(ctx, cacheUpsertItem,
		item.ID.String(), item.StorageID.String(), item.VaultID.String(),
		item.Path, item.Name, item.TypeID, item.PayloadEnc, item.Checksum,
		item.CacheKeyFP, item.Version, item.LastSeq, nullTime(item.DeletedAt), item.UpdatedAt,
		int32(item.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) SetItemStatus(ctx context.Context, storageID, itemID uuid.UUID, status models.SyncStatus) error {
	res, err := r.ExecContext(ctx, cacheSetItemStatus,
		storageID.String(), itemID.String(), int32(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *cacheRepository) HardDeleteItem(ctx context.Context, storageID, itemID uuid.UUID) error {
	if _, err := r.ExecContext(ctx, cacheHardDeleteItem, storageID.String(), itemID.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) CreatePending(ctx context.Context, change *models.LocalPendingChange) error {
	_, err := r.ExecContext(ctx, cacheInsertPending,
		change.ID.String(), change.StorageID.String(), change.VaultID.String(), change.ItemID.String(),
		int32(change.Operation), change.PayloadEnc, nullString(change.Checksum),
		nullString(change.Path), nullString(change.Name), nullString(change.TypeID),
		nullInt64(change.BaseSeq), change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) ListPendingByVault(ctx context.Context, storageID, vaultID uuid.UUID) ([]models.LocalPendingChange, error) {
	return r.listPending(ctx, cacheListPendingByVault, storageID.String(), vaultID.String())
}

func (r *cacheRepository) ListPendingByItem(ctx context.Context, storageID, itemID uuid.UUID) ([]models.LocalPendingChange, error) {
	return r.listPending(ctx, cacheListPendingByItem, storageID.String(), itemID.String())
}

func (r *cacheRepository) listPending(ctx context.Context, query string, args ...any) ([]models.LocalPendingChange, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	changes := make([]models.LocalPendingChange, 0, 16)
	for rows.Next() {
		change, err := scanLocalPending(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, *change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return changes, nil
}

func (r *cacheRepository) DeletePendingByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id.String())
	}

	query := fmt.Sprintf("DELETE FROM pending_changes WHERE id IN (%s)", placeholders)
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) DeletePendingByItem(ctx context.Context, storageID, itemID uuid.UUID) error {
	if _, err := r.ExecContext(ctx, cacheDeletePendingByItem, storageID.String(), itemID.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *cacheRepository) GetCursor(ctx context.Context, storageID, vaultID uuid.UUID) (*models.LocalSyncCursor, error) {
	var (
		cursor     models.LocalSyncCursor
		rawStorage string
		rawVault   string
		lastSync   sql.NullTime
	)
	err := r.QueryRowContext(ctx, cacheGetCursor, storageID.String(), vaultID.String()).Scan(
		&rawStorage, &rawVault, &cursor.Cursor, &lastSync,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.LocalSyncCursor{StorageID: storageID, VaultID: vaultID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	cursor.StorageID, cursor.VaultID = storageID, vaultID
	if lastSync.Valid {
		t := lastSync.Time
		cursor.LastSyncAt = &t
	}
	return &cursor, nil
}

func (r *cacheRepository) SaveCursor(ctx context.Context, cursor *models.LocalSyncCursor) error {
	_, err := r.ExecContext(ctx, cacheSaveCursor,
		cursor.StorageID.String(), cursor.VaultID.String(), cursor.Cursor, nullTime(cursor.LastSyncAt),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// ReplaceItemHistory swaps the cached history of one item for the entries
// the server shipped with the latest pull.
func (r *cacheRepository) ReplaceItemHistory(ctx context.Context, storageID, vaultID, itemID uuid.UUID, entries []models.LocalItemHistory) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, cacheDeleteItemHistory, storageID.String(), itemID.String()); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
		for i := range entries {
			entry := &entries[i]
			_, err := tx.ExecContext(ctx, cacheInsertItemHistory,
				entry.ID.String(), storageID.String(), vaultID.String(), itemID.String(),
				entry.PayloadEnc, entry.Checksum, entry.Version, int32(entry.ChangeType),
				entry.ChangedByEmail, nullString(entry.ChangedByName), entry.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
			}
		}
		return nil
	})
}

func (r *cacheRepository) ListItemHistory(ctx context.Context, storageID, itemID uuid.UUID) ([]models.LocalItemHistory, error) {
	rows, err := r.QueryContext(ctx, cacheListItemHistory, storageID.String(), itemID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	entries := make([]models.LocalItemHistory, 0, 8)
	for rows.Next() {
		var (
			entry      models.LocalItemHistory
			rawID      string
			rawStorage string
			rawVault   string
			rawItem    string
			changeType int32
			name       sql.NullString
		)
		err := rows.Scan(
			&rawID, &rawStorage, &rawVault, &rawItem, &entry.PayloadEnc, &entry.Checksum,
			&entry.Version, &changeType, &entry.ChangedByEmail, &name, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if entry.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if entry.StorageID, err = uuid.Parse(rawStorage); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if entry.VaultID, err = uuid.Parse(rawVault); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if entry.ItemID, err = uuid.Parse(rawItem); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if entry.ChangeType, err = models.ParseChangeType(changeType); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		entry.ChangedByName = name.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return entries, nil
}

func scanLocalVault(row rowScanner) (*models.LocalVault, error) {
	var (
		vault      models.LocalVault
		rawID      string
		rawStorage string
		kind       int32
		cachePol   int32
		lastSynced sql.NullTime
	)
	err := row.Scan(
		&rawID, &rawStorage, &vault.Slug, &vault.Name, &kind, &cachePol,
		&vault.VaultKeyEnc, &lastSynced,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.StorageID, err = uuid.Parse(rawStorage); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.Kind, err = models.ParseVaultKind(kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.CachePolicy, err = models.ParseCachePolicy(cachePol); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		vault.LastSyncedAt = &t
	}
	return &vault, nil
}

func scanLocalItem(row rowScanner) (*models.LocalItem, error) {
	var (
		item       models.LocalItem
		rawID      string
		rawStorage string
		rawVault   string
		deletedAt  sql.NullTime
		status     int32
	)
	err := row.Scan(
		&rawID, &rawStorage, &rawVault, &item.Path, &item.Name, &item.TypeID,
		&item.PayloadEnc, &item.Checksum, &item.CacheKeyFP, &item.Version,
		&item.LastSeq, &deletedAt, &item.UpdatedAt, &status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if item.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if item.StorageID, err = uuid.Parse(rawStorage); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if item.VaultID, err = uuid.Parse(rawVault); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if item.SyncStatus, err = models.ParseSyncStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		item.DeletedAt = &t
	}
	return &item, nil
}

func scanLocalPending(row rowScanner) (*models.LocalPendingChange, error) {
	var (
		change     models.LocalPendingChange
		rawID      string
		rawStorage string
		rawVault   string
		rawItem    string
		operation  int32
		checksum   sql.NullString
		path       sql.NullString
		name       sql.NullString
		typeID     sql.NullString
		baseSeq    sql.NullInt64
	)
	err := row.Scan(
		&rawID, &rawStorage, &rawVault, &rawItem, &operation, &change.PayloadEnc,
		&checksum, &path, &name, &typeID, &baseSeq, &change.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if change.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if change.StorageID, err = uuid.Parse(rawStorage); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if change.VaultID, err = uuid.Parse(rawVault); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if change.ItemID, err = uuid.Parse(rawItem); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if change.Operation, err = models.ParseChangeType(operation); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	change.Checksum = checksum.String
	change.Path = path.String
	change.Name = name.String
	change.TypeID = typeID.String
	if baseSeq.Valid {
		v := baseSeq.Int64
		change.BaseSeq = &v
	}
	return &change, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
