// SPDX-License-Identifier: Apache-2.0

package store

const (
	cacheUpsertStorage = `
		INSERT INTO storages (id, kind, name, server_url, server_name, server_fingerprint, account_subject)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			server_url = excluded.server_url,
			server_name = excluded.server_name,
			server_fingerprint = excluded.server_fingerprint,
			account_subject = excluded.account_subject;`

	cacheGetStorage = `
		SELECT id, kind, name, server_url, server_name, server_fingerprint, account_subject
		FROM storages
		WHERE id = ?1;`

	cacheUpsertVault = `
		INSERT INTO vaults (id, storage_id, slug, name, kind, cache_policy, vault_key_enc, last_synced_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)
		ON CONFLICT (id, storage_id) DO UPDATE SET
			slug = excluded.slug,
			name = excluded.name,
			kind = excluded.kind,
			cache_policy = excluded.cache_policy,
			vault_key_enc = excluded.vault_key_enc,
			last_synced_at = excluded.last_synced_at;`

	cacheGetVault = `
		SELECT id, storage_id, slug, name, kind, cache_policy, vault_key_enc, last_synced_at
		FROM vaults
		WHERE storage_id = ?1 AND id = ?2;`

	cacheListVaults = `
		SELECT id, storage_id, slug, name, kind, cache_policy, vault_key_enc, last_synced_at
		FROM vaults
		WHERE storage_id = ?1
		ORDER BY name;`

	cacheItemColumns = `id, storage_id, vault_id, path, name, type_id, payload_enc, checksum,
		cache_key_fp, version, last_seq, deleted_at, updated_at, sync_status`

	cacheGetItem = `
		SELECT id, storage_id, vault_id, path, name, type_id, payload_enc, checksum,
			cache_key_fp, version, last_seq, deleted_at, updated_at, sync_status
		FROM items
		WHERE storage_id = ?1 AND id = ?2;`

	cacheGetItemByPath = `
		SELECT id, storage_id, vault_id, path, name, type_id, payload_enc, checksum,
			cache_key_fp, version, last_seq, deleted_at, updated_at, sync_status
		FROM items
		WHERE storage_id = ?1 AND vault_id = ?2 AND path = ?3 AND deleted_at IS NULL;`

	cacheListItems = `
		SELECT id, storage_id, vault_id, path, name, type_id, payload_enc, checksum,
			cache_key_fp, version, last_seq, deleted_at, updated_at, sync_status
		FROM items
		WHERE storage_id = ?1 AND vault_id = ?2 AND deleted_at IS NULL
		ORDER BY path;`

	cacheUpsertItem = `
		INSERT INTO items (id, storage_id, vault_id, path, name, type_id, payload_enc, checksum,
			cache_key_fp, version, last_seq, deleted_at, updated_at, sync_status)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14)
		ON CONFLICT (id, storage_id) DO UPDATE SET
			vault_id = excluded.vault_id,
			path = excluded.path,
			name = excluded.name,
			type_id = excluded.type_id,
			payload_enc = excluded.payload_enc,
			checksum = excluded.checksum,
			cache_key_fp = excluded.cache_key_fp,
			version = excluded.version,
			last_seq = excluded.last_seq,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status;`

	cacheSetItemStatus = `
		UPDATE items
		SET sync_status = ?3, updated_at = ?4
		WHERE storage_id = ?1 AND id = ?2;`

	cacheHardDeleteItem = `
		DELETE FROM items
		WHERE storage_id = ?1 AND id = ?2;`

	cacheInsertPending = `
		INSERT INTO pending_changes (id, storage_id, vault_id, item_id, operation, payload_enc,
			checksum, path, name, type_id, base_seq, created_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12);`

	cacheListPendingByVault = `
		SELECT id, storage_id, vault_id, item_id, operation, payload_enc, checksum,
			path, name, type_id, base_seq, created_at
		FROM pending_changes
		WHERE storage_id = ?1 AND vault_id = ?2
		ORDER BY created_at, id;`

	cacheListPendingByItem = `
		SELECT id, storage_id, vault_id, item_id, operation, payload_enc, checksum,
			path, name, type_id, base_seq, created_at
		FROM pending_changes
		WHERE storage_id = ?1 AND item_id = ?2
		ORDER BY created_at, id;`

	cacheDeletePendingByItem = `
		DELETE FROM pending_changes
		WHERE storage_id = ?1 AND item_id = ?2;`

	cacheGetCursor = `
		SELECT storage_id, vault_id, cursor, last_sync_at
		FROM sync_cursors
		WHERE storage_id = ?1 AND vault_id = ?2;`

	cacheSaveCursor = `
		INSERT INTO sync_cursors (storage_id, vault_id, cursor, last_sync_at)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (storage_id, vault_id) DO UPDATE SET
			cursor = excluded.cursor,
			last_sync_at = excluded.last_sync_at;`

	cacheDeleteItemHistory = `
		DELETE FROM item_history
		WHERE storage_id = ?1 AND item_id = ?2;`

	cacheInsertItemHistory = `
		INSERT INTO item_history (id, storage_id, vault_id, item_id, payload_enc, checksum,
			version, change_type, changed_by_email, changed_by_name, created_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11);`

	cacheListItemHistory = `
		SELECT id, storage_id, vault_id, item_id, payload_enc, checksum,
			version, change_type, changed_by_email, changed_by_name, created_at
		FROM item_history
		WHERE storage_id = ?1 AND item_id = ?2
		ORDER BY version DESC;`
)
