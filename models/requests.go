// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"time"
)

// CreateVaultRequest creates a vault. Personal vaults must be
// client-encrypted; VaultKeyEnc is only meaningful for them (the wrapped key
// the owner stores server-side for recovery). Server vaults get a key
// generated and wrapped by the server itself.
type CreateVaultRequest struct {
	Slug           string              `json:"slug"`
	Name           string              `json:"name"`
	Kind           VaultKind           `json:"kind"`
	EncryptionType VaultEncryptionType `json:"encryption_type,omitempty"`
	CachePolicy    CachePolicy         `json:"cache_policy,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	VaultKeyEnc    []byte              `json:"vault_key_enc,omitempty"`
}

// CreateItemRequest creates an item. Exactly one of PayloadEnc (client
// encrypted vault) or Payload (server encrypted vault) must be present.
type CreateItemRequest struct {
	Path       string          `json:"path"`
	TypeID     string          `json:"type_id"`
	PayloadEnc []byte          `json:"payload_enc,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Checksum   string          `json:"checksum,omitempty"`
}

// UpdateItemRequest partially updates an item. Nil members are untouched.
// BaseSeq, when set, enables optimistic concurrency against the journal.
type UpdateItemRequest struct {
	Path       *string         `json:"path,omitempty"`
	Name       *string         `json:"name,omitempty"`
	TypeID     *string         `json:"type_id,omitempty"`
	PayloadEnc []byte          `json:"payload_enc,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Checksum   string          `json:"checksum,omitempty"`
	BaseSeq    *int64          `json:"base_seq,omitempty"`
}

// ItemResponse is the standard item projection returned by item CRUD. For
// server-encrypted vaults Payload carries the decrypted document; for
// client-encrypted vaults only PayloadEnc is set.
type ItemResponse struct {
	ID         string          `json:"id"`
	VaultID    string          `json:"vault_id"`
	Path       string          `json:"path"`
	Name       string          `json:"name"`
	TypeID     string          `json:"type_id"`
	PayloadEnc []byte          `json:"payload_enc,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Checksum   string          `json:"checksum"`
	Version    int64           `json:"version"`
	Seq        int64           `json:"seq"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Rotation   string          `json:"rotation_state,omitempty"`
}

// MutationResponse acknowledges a journalled mutation.
type MutationResponse struct {
	ItemID    string    `json:"item_id"`
	Seq       int64     `json:"seq"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionsResponse lists history entries newest-first.
type VersionsResponse struct {
	Versions []SyncHistoryEntry `json:"versions"`
}

// ErrorResponse is the uniform error body: a stable machine-readable kind.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MetaResponse identifies the server to clients that pin fingerprints.
type MetaResponse struct {
	ServerName  string `json:"server_name"`
	Fingerprint string `json:"fingerprint"`
	Version     string `json:"version"`
}
