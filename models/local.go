// SPDX-License-Identifier: Apache-2.0

package models

import (
	"time"

	"github.com/google/uuid"
)

// LocalStorage is a client-side handle to one server (or a purely local
// store). The fingerprint pins the server identity; a mismatch on connect
// is fatal for that storage.
type LocalStorage struct {
	ID                uuid.UUID
	Kind              StorageKind
	Name              string
	ServerURL         string
	ServerName        string
	ServerFingerprint string
	AccountSubject    string
}

// LocalVault mirrors a server vault in the cache, including the wrapped
// vault key the client unwraps with its master key.
type LocalVault struct {
	ID           uuid.UUID
	StorageID    uuid.UUID
	Slug         string
	Name         string
	Kind         VaultKind
	CachePolicy  CachePolicy
	VaultKeyEnc  []byte
	LastSyncedAt *time.Time
}

// LocalItem is the cached mirror of a server item. CacheKeyFP identifies
// which vault key sealed PayloadEnc; after a vault-key rotation the
// fingerprint changes and stale rows are refused rather than misdecrypted.
type LocalItem struct {
	ID         uuid.UUID
	StorageID  uuid.UUID
	VaultID    uuid.UUID
	Path       string
	Name       string
	TypeID     string
	PayloadEnc []byte
	Checksum   string
	CacheKeyFP string
	Version    int64
	LastSeq    int64
	DeletedAt  *time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}

// LocalPendingChange is one queued outbound mutation, applied to the server
// in insertion order.
type LocalPendingChange struct {
	ID         uuid.UUID
	StorageID  uuid.UUID
	VaultID    uuid.UUID
	ItemID     uuid.UUID
	Operation  ChangeType
	PayloadEnc []byte
	Checksum   string
	Path       string
	Name       string
	TypeID     string
	BaseSeq    *int64
	CreatedAt  time.Time
}

// LocalSyncCursor remembers where the last pull for (storage, vault) left
// off. The cursor string is opaque to the client.
type LocalSyncCursor struct {
	StorageID  uuid.UUID
	VaultID    uuid.UUID
	Cursor     string
	LastSyncAt *time.Time
}

// LocalItemHistory caches the history entries the server ships with pulls.
type LocalItemHistory struct {
	ID             uuid.UUID
	StorageID      uuid.UUID
	VaultID        uuid.UUID
	ItemID         uuid.UUID
	PayloadEnc     []byte
	Checksum       string
	Version        int64
	ChangeType     ChangeType
	ChangedByEmail string
	ChangedByName  string
	CreatedAt      time.Time
}
