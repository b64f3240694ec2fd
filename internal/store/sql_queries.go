// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	createVault = `
		INSERT INTO vaults (id, slug, name, kind, encryption_type, vault_key_enc, cache_policy, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING row_version, created_at;`

	addVaultMember = `
		INSERT INTO vault_members (vault_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (vault_id, user_id) DO UPDATE SET role = EXCLUDED.role;`

	vaultColumns = `id, slug, name, kind, encryption_type, vault_key_enc, cache_policy, tags, row_version, deleted_at, created_at`

	getVaultByID = `
		SELECT id, slug, name, kind, encryption_type, vault_key_enc, cache_policy, tags, row_version, deleted_at, created_at
		FROM vaults
		WHERE id = $1;`

	getVaultBySlug = `
		SELECT id, slug, name, kind, encryption_type, vault_key_enc, cache_policy, tags, row_version, deleted_at, created_at
		FROM vaults
		WHERE LOWER(slug) = LOWER($1) AND deleted_at IS NULL;`

	softDeleteVault = `
		UPDATE vaults
		SET deleted_at = NOW(), row_version = row_version + 1
		WHERE id = $1 AND deleted_at IS NULL;`

	restoreVault = `
		UPDATE vaults
		SET deleted_at = NULL, row_version = row_version + 1
		WHERE id = $1 AND deleted_at IS NOT NULL;`

	getMemberRole = `
		SELECT role
		FROM vault_members
		WHERE vault_id = $1 AND user_id = $2;`

	// Per-vault advisory lock serialising journal seq allocation within the
	// enclosing transaction. hashtextextended folds the vault UUID into the
	// bigint key space.
	lockVaultJournal = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 42));`

	nextVaultSeq = `
		SELECT COALESCE(MAX(seq), 0) + 1
		FROM changes
		WHERE vault_id = $1;`

	maxVaultSeq = `
		SELECT COALESCE(MAX(seq), 0)
		FROM changes
		WHERE vault_id = $1;`

	maxItemSeq = `
		SELECT COALESCE(MAX(seq), 0)
		FROM changes
		WHERE vault_id = $1 AND item_id = $2;`

	appendChange = `
		INSERT INTO changes (seq, vault_id, item_id, op, version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at;`

	itemColumns = `id, vault_id, path, name, type_id, payload_enc, checksum, version, row_version,
		sync_status, deleted_at, created_at, updated_at,
		rotation_state, rotation_candidate_enc, rotation_started_at, rotation_started_by,
		rotation_expires_at, rotation_recover_until, rotation_aborted_reason`

	getItemByID = `
		SELECT id, vault_id, path, name, type_id, payload_enc, checksum, version, row_version,
			sync_status, deleted_at, created_at, updated_at,
			rotation_state, rotation_candidate_enc, rotation_started_at, rotation_started_by,
			rotation_expires_at, rotation_recover_until, rotation_aborted_reason
		FROM items
		WHERE id = $1;`

	findLivePathConflict = `
		SELECT id
		FROM items
		WHERE vault_id = $1
		  AND path = $2
		  AND deleted_at IS NULL
		  AND ($3::uuid IS NULL OR id <> $3)
		LIMIT 1;`

	insertItem = `
		INSERT INTO items (id, vault_id, path, name, type_id, payload_enc, checksum, version, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
		RETURNING created_at, updated_at;`

	updateItemRow = `
		UPDATE items
		SET path = $2,
			name = $3,
			type_id = $4,
			payload_enc = $5,
			checksum = $6,
			version = version + 1,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at;`

	softDeleteItem = `
		UPDATE items
		SET deleted_at = NOW(),
			sync_status = $2,
			version = version + 1,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING version, updated_at;`

	restoreItemRow = `
		UPDATE items
		SET deleted_at = NULL,
			sync_status = $2,
			version = version + 1,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
		RETURNING version, updated_at;`

	purgeItemRow = `DELETE FROM items WHERE id = $1;`

	insertHistory = `
		INSERT INTO item_history (id, item_id, payload_enc, checksum, version, change_type,
			changed_by_email, changed_by_name, changed_by_device_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	// Keep the newest $2 history rows of an item, version order.
	pruneHistoryCap = `
		DELETE FROM item_history
		WHERE id IN (
			SELECT id
			FROM item_history
			WHERE item_id = $1
			ORDER BY version DESC
			OFFSET $2
		);`

	pruneHistoryTTL = `DELETE FROM item_history WHERE created_at < $1;`

	historyByItem = `
		SELECT id, item_id, payload_enc, checksum, version, change_type,
			changed_by_email, changed_by_name, changed_by_device_name, created_at
		FROM item_history
		WHERE item_id = $1
		ORDER BY version DESC
		LIMIT $2;`

	historyVersion = `
		SELECT id, item_id, payload_enc, checksum, version, change_type,
			changed_by_email, changed_by_name, changed_by_device_name, created_at
		FROM item_history
		WHERE item_id = $1 AND version = $2;`

	journalAfterCursor = `
		SELECT c.seq, c.op, c.item_id, c.version, c.created_at,
			i.path, i.name, i.type_id, i.payload_enc, i.checksum, i.updated_at, i.deleted_at
		FROM changes c
		JOIN items i ON i.id = c.item_id
		WHERE c.vault_id = $1 AND c.seq > $2
		ORDER BY c.seq
		LIMIT $3;`
)

// buildListVaultsQuery selects the vaults a user is a member of, newest
// first, optionally including soft-deleted rows.
func buildListVaultsQuery(userID uuid.UUID, includeDeleted bool) (string, []any, error) {
	qb := psql.
		Select(
			"v.id", "v.slug", "v.name", "v.kind", "v.encryption_type", "v.vault_key_enc",
			"v.cache_policy", "v.tags", "v.row_version", "v.deleted_at", "v.created_at",
		).
		From("vaults v").
		Join("vault_members m ON m.vault_id = v.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("v.created_at DESC")

	if !includeDeleted {
		qb = qb.Where("v.deleted_at IS NULL")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

// buildPurgeTrashQuery deletes tombstoned items of a vault, optionally only
// those deleted before the cutoff.
func buildPurgeTrashQuery(vaultID uuid.UUID, olderThanDays int) (string, []any, error) {
	qb := psql.
		Delete("items").
		Where(sq.Eq{"vault_id": vaultID}).
		Where("deleted_at IS NOT NULL")

	if olderThanDays > 0 {
		qb = qb.Where(fmt.Sprintf("deleted_at < NOW() - INTERVAL '%d days'", olderThanDays))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

// buildListTrashQuery selects tombstoned items of a vault, newest first.
func buildListTrashQuery(vaultID uuid.UUID) (string, []any, error) {
	qb := psql.
		Select(
			"id", "vault_id", "path", "name", "type_id", "payload_enc", "checksum",
			"version", "row_version", "sync_status", "deleted_at", "created_at", "updated_at",
			"rotation_state", "rotation_candidate_enc", "rotation_started_at", "rotation_started_by",
			"rotation_expires_at", "rotation_recover_until", "rotation_aborted_reason",
		).
		From("items").
		Where(sq.Eq{"vault_id": vaultID}).
		Where("deleted_at IS NOT NULL").
		OrderBy("deleted_at DESC")

	query, args, err := qb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}
