// SPDX-License-Identifier: Apache-2.0

package models

import (
	"time"

	"github.com/google/uuid"
)

// Vault is the server-side vault record. VaultKeyEnc holds the vault key
// wrapped under the server master key for server-encrypted vaults; for
// client-encrypted personal vaults it holds the owner's wrapped key when the
// create request supplied one, which the server cannot unwrap.
type Vault struct {
	ID             uuid.UUID           `json:"id"`
	Slug           string              `json:"slug"`
	Name           string              `json:"name"`
	Kind           VaultKind           `json:"kind"`
	EncryptionType VaultEncryptionType `json:"encryption_type"`
	VaultKeyEnc    []byte              `json:"-"`
	CachePolicy    CachePolicy         `json:"cache_policy"`
	Tags           []string            `json:"tags,omitempty"`
	RowVersion     int64               `json:"row_version"`
	DeletedAt      *time.Time          `json:"deleted_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// IsSharedServer reports whether the server holds this vault's key, i.e.
// payloads travel as plaintext JSON and are encrypted server-side.
func (v *Vault) IsSharedServer() bool {
	return v.Kind == VaultKindShared && v.EncryptionType == EncryptionServer
}

// VaultMember links a user to a vault with a role.
type VaultMember struct {
	VaultID   uuid.UUID       `json:"vault_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Role      VaultMemberRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// CanWrite reports whether the role may mutate vault items.
func (r VaultMemberRole) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator || r == RoleMember
}

// CanRead reports whether the role may read vault items. Every defined role
// can; the method exists so call sites read as capability checks.
func (r VaultMemberRole) CanRead() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleMember, RoleReadonly:
		return true
	}
	return false
}

// CanRotate reports whether the role may drive credential rotation.
func (r VaultMemberRole) CanRotate() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanAdmin reports whether the role may delete or restore the vault itself.
func (r VaultMemberRole) CanAdmin() bool {
	return r == RoleAdmin
}
