// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultSyncLimit and MaxSyncLimit bound the number of journal rows one
// pull may return.
const (
	DefaultSyncLimit = 100
	MaxSyncLimit     = 500
)

// SyncPullRequest asks for journal rows after the given cursor.
type SyncPullRequest struct {
	VaultID uuid.UUID `json:"vault_id"`
	Cursor  string    `json:"cursor,omitempty"`
	Limit   int64     `json:"limit,omitempty"`
}

// SyncPullResponse carries one page of journal-ordered changes.
type SyncPullResponse struct {
	Changes       []SyncPullChange `json:"changes"`
	NextCursor    string           `json:"next_cursor"`
	HasMore       bool             `json:"has_more"`
	PushAvailable bool             `json:"push_available"`
}

// SyncPullChange is one journal row joined with current item state. For the
// personal path PayloadEnc carries the opaque envelope; the shared path
// fills Payload with decrypted JSON instead. Deletes omit both.
type SyncPullChange struct {
	ItemID    string             `json:"item_id"`
	Operation ChangeType         `json:"operation"`
	Seq       int64              `json:"seq"`
	UpdatedAt time.Time          `json:"updated_at"`
	Checksum  string             `json:"checksum"`
	PayloadEnc []byte            `json:"payload_enc,omitempty"`
	Payload   json.RawMessage    `json:"payload,omitempty"`
	Path      string             `json:"path"`
	Name      string             `json:"name"`
	TypeID    string             `json:"type_id"`
	History   []SyncHistoryEntry `json:"history,omitempty"`
}

// SyncHistoryEntry is a prior version shipped alongside a pull change.
type SyncHistoryEntry struct {
	Version        int64           `json:"version"`
	Checksum       string          `json:"checksum"`
	ChangeType     ChangeType      `json:"change_type"`
	ChangedByName  string          `json:"changed_by_name,omitempty"`
	ChangedByEmail string          `json:"changed_by_email"`
	CreatedAt      time.Time       `json:"created_at"`
	PayloadEnc     []byte          `json:"payload_enc,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SyncPushRequest applies a batch of client changes to one vault.
type SyncPushRequest struct {
	VaultID uuid.UUID        `json:"vault_id"`
	Changes []SyncPushChange `json:"changes"`
}

// SyncPushChange is one outbound mutation. Exactly one of PayloadEnc
// (personal path) or Payload (shared path) is set for creates and updates.
// BaseSeq is the optimistic-concurrency token: the last journal seq the
// client observed for this item, nil for a first create.
type SyncPushChange struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Operation  ChangeType      `json:"operation"`
	PayloadEnc []byte          `json:"payload_enc,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Checksum   string          `json:"checksum,omitempty"`
	Path       string          `json:"path,omitempty"`
	Name       string          `json:"name,omitempty"`
	TypeID     string          `json:"type_id,omitempty"`
	BaseSeq    *int64          `json:"base_seq,omitempty"`
}

// SyncPushResponse reports the outcome per change. Conflicts never abort the
// batch; they ride back here with HTTP 200 so clients can retry precisely.
type SyncPushResponse struct {
	Applied        []string            `json:"applied"`
	AppliedChanges []SyncAppliedChange `json:"applied_changes"`
	Conflicts      []SyncPushConflict  `json:"conflicts"`
	NewCursor      string              `json:"new_cursor"`
}

// SyncAppliedChange echoes the server state assigned to an applied change.
type SyncAppliedChange struct {
	ItemID    string     `json:"item_id"`
	Seq       int64      `json:"seq"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// SyncPushConflict describes a change the server refused without failing
// the batch.
type SyncPushConflict struct {
	ItemID          string    `json:"item_id"`
	Reason          string    `json:"reason"`
	ServerSeq       int64     `json:"server_seq"`
	ServerUpdatedAt time.Time `json:"server_updated_at"`
}

// Conflict reason strings reported inside SyncPushResponse.Conflicts.
const (
	ConflictBaseSeqMismatch = "base_seq_mismatch"
	ConflictPath            = "path_conflict"
)
