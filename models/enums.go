// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"fmt"
)

// VaultKind distinguishes single-owner vaults from vaults shared between
// several members.
type VaultKind int32

const (
	VaultKindPersonal VaultKind = 1
	VaultKindShared   VaultKind = 2
)

// VaultEncryptionType records who holds the vault key: the client (the
// server only ever sees ciphertext) or the server (payloads are encrypted
// and decrypted server-side).
type VaultEncryptionType int32

const (
	EncryptionClient VaultEncryptionType = 1
	EncryptionServer VaultEncryptionType = 2
)

// VaultMemberRole orders member capabilities from Admin (full control)
// down to Readonly.
type VaultMemberRole int32

const (
	RoleAdmin    VaultMemberRole = 1
	RoleOperator VaultMemberRole = 2
	RoleMember   VaultMemberRole = 3
	RoleReadonly VaultMemberRole = 4
)

// CachePolicy tells clients how much of a vault they may mirror locally.
type CachePolicy int32

const (
	CacheFull         CachePolicy = 1
	CacheMetadataOnly CachePolicy = 2
	CacheNone         CachePolicy = 3
)

// SyncStatus is the lifecycle state of an item row. Active and Tombstone are
// the only values the server ever persists; the remaining states exist only
// in the local cache.
type SyncStatus int32

const (
	StatusActive       SyncStatus = 1
	StatusTombstone    SyncStatus = 2
	StatusModified     SyncStatus = 3
	StatusLocalDeleted SyncStatus = 4
	StatusConflict     SyncStatus = 5
	StatusSynced       SyncStatus = 6
)

// ChangeType is the operation recorded in the per-vault change journal.
type ChangeType int32

const (
	ChangeCreate  ChangeType = 1
	ChangeUpdate  ChangeType = 2
	ChangeDelete  ChangeType = 3
	ChangeRestore ChangeType = 4
)

// RotationState is the credential-rotation state of a shared server item.
// The zero value (empty string in storage, NULL in the database) means no
// rotation is in progress.
type RotationState string

const (
	RotationActive   RotationState = ""
	RotationRotating RotationState = "rotating"
	RotationStale    RotationState = "stale"
)

// StorageKind distinguishes a remote server mirror from a purely local store.
type StorageKind int32

const (
	StorageRemote StorageKind = 1
	StorageLocal  StorageKind = 2
)

// IdentitySource records how the caller identity was established.
type IdentitySource string

const (
	SourceInternal       IdentitySource = "internal"
	SourceOidc           IdentitySource = "oidc"
	SourceServiceAccount IdentitySource = "service_account"
)

// EnumError reports a value that does not decode into the named enum.
// Unknown values are always an error, never silently coerced.
type EnumError struct {
	Enum  string
	Value any
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("invalid %s value: %v", e.Enum, e.Value)
}

// ParseVaultKind decodes the integer wire/storage representation.
func ParseVaultKind(v int32) (VaultKind, error) {
	switch VaultKind(v) {
	case VaultKindPersonal, VaultKindShared:
		return VaultKind(v), nil
	}
	return 0, &EnumError{Enum: "vault_kind", Value: v}
}

// ParseVaultEncryptionType decodes the integer wire/storage representation.
func ParseVaultEncryptionType(v int32) (VaultEncryptionType, error) {
	switch VaultEncryptionType(v) {
	case EncryptionClient, EncryptionServer:
		return VaultEncryptionType(v), nil
	}
	return 0, &EnumError{Enum: "vault_encryption_type", Value: v}
}

// ParseVaultMemberRole decodes the integer wire/storage representation.
func ParseVaultMemberRole(v int32) (VaultMemberRole, error) {
	switch VaultMemberRole(v) {
	case RoleAdmin, RoleOperator, RoleMember, RoleReadonly:
		return VaultMemberRole(v), nil
	}
	return 0, &EnumError{Enum: "vault_member_role", Value: v}
}

// ParseCachePolicy decodes the integer wire/storage representation.
func ParseCachePolicy(v int32) (CachePolicy, error) {
	switch CachePolicy(v) {
	case CacheFull, CacheMetadataOnly, CacheNone:
		return CachePolicy(v), nil
	}
	return 0, &EnumError{Enum: "cache_policy", Value: v}
}

// ParseSyncStatus decodes the integer wire/storage representation.
func ParseSyncStatus(v int32) (SyncStatus, error) {
	if v >= int32(StatusActive) && v <= int32(StatusSynced) {
		return SyncStatus(v), nil
	}
	return 0, &EnumError{Enum: "sync_status", Value: v}
}

// ParseChangeType decodes the integer wire/storage representation.
func ParseChangeType(v int32) (ChangeType, error) {
	if v >= int32(ChangeCreate) && v <= int32(ChangeRestore) {
		return ChangeType(v), nil
	}
	return 0, &EnumError{Enum: "change_type", Value: v}
}

// ParseStorageKind decodes the integer wire/storage representation.
func ParseStorageKind(v int32) (StorageKind, error) {
	switch StorageKind(v) {
	case StorageRemote, StorageLocal:
		return StorageKind(v), nil
	}
	return 0, &EnumError{Enum: "storage_kind", Value: v}
}

// ParseRotationState decodes the nullable string storage representation.
func ParseRotationState(v string) (RotationState, error) {
	switch RotationState(v) {
	case RotationActive, RotationRotating, RotationStale:
		return RotationState(v), nil
	}
	return "", &EnumError{Enum: "rotation_state", Value: v}
}

func (c ChangeType) String() string {
	switch c {
	case ChangeCreate:
		return "create"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	case ChangeRestore:
		return "restore"
	}
	return fmt.Sprintf("change_type(%d)", int32(c))
}

// MarshalJSON emits the numeric wire form shared with the storage layer.
func (c ChangeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(int32(c))
}

// UnmarshalJSON accepts the numeric wire form only; unknown values fail.
func (c *ChangeType) UnmarshalJSON(data []byte) error {
	var raw int32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseChangeType(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (s RotationState) String() string {
	if s == RotationActive {
		return "active"
	}
	return string(s)
}
