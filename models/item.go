// SPDX-License-Identifier: Apache-2.0

package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is the authoritative server-side item row. PayloadEnc is always the
// canonical envelope blob; Checksum is the lowercase BLAKE3 hex of
// PayloadEnc and is the identity of a ciphertext during sync.
type Item struct {
	ID         uuid.UUID  `json:"id"`
	VaultID    uuid.UUID  `json:"vault_id"`
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	TypeID     string     `json:"type_id"`
	PayloadEnc []byte     `json:"payload_enc,omitempty"`
	Checksum   string     `json:"checksum"`
	Version    int64      `json:"version"`
	RowVersion int64      `json:"row_version"`
	SyncStatus SyncStatus `json:"sync_status"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Rotation RotationColumns `json:"-"`
}

// RotationColumns carries the credential-rotation companion columns of an
// item row. All fields are unset while no rotation is in progress.
type RotationColumns struct {
	State         RotationState
	CandidateEnc  []byte
	StartedAt     *time.Time
	StartedBy     *uuid.UUID
	ExpiresAt     *time.Time
	RecoverUntil  *time.Time
	AbortedReason string
}

// Expired reports whether a Rotating lock has passed its expiry.
func (r *RotationColumns) Expired(now time.Time) bool {
	return r.State == RotationRotating && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Recoverable reports whether a Stale candidate may still be applied.
func (r *RotationColumns) Recoverable(now time.Time) bool {
	return r.State == RotationStale && r.RecoverUntil != nil && now.Before(*r.RecoverUntil)
}

// Change is one row of the per-vault append-only journal. Seq is strictly
// increasing within a vault and is the only ordering clients may rely on.
type Change struct {
	Seq       int64      `json:"seq"`
	VaultID   uuid.UUID  `json:"vault_id"`
	ItemID    uuid.UUID  `json:"item_id"`
	Op        ChangeType `json:"op"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
}

// ItemHistory is one audit entry of a previous item version, written in the
// same transaction as the mutation that superseded it.
type ItemHistory struct {
	ID                  uuid.UUID  `json:"id"`
	ItemID              uuid.UUID  `json:"item_id"`
	PayloadEnc          []byte     `json:"payload_enc,omitempty"`
	Checksum            string     `json:"checksum"`
	Version             int64      `json:"version"`
	ChangeType          ChangeType `json:"change_type"`
	ChangedByEmail      string     `json:"changed_by_email"`
	ChangedByName       string     `json:"changed_by_name,omitempty"`
	ChangedByDeviceName string     `json:"changed_by_device_name,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// ActorSnapshot captures who performed a mutation at the moment it happened,
// denormalised into each history row so the audit trail survives user and
// device deletion.
type ActorSnapshot struct {
	Email      string
	Name       string
	DeviceName string
}
