// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// SyncService implements both synchronization paths over the shared journal
// semantics. The personal path moves opaque envelope bytes; the shared path
// moves plaintext JSON that the server seals and opens with the vault key.
type SyncService struct {
	deps   *Deps
	access *accessChecker
}

// NewSyncService constructs a [SyncService].
func NewSyncService(deps *Deps, access *accessChecker) *SyncService {
	return &SyncService{deps: deps, access: access}
}

// Pull returns journal rows after the request cursor, joined with current
// item state and recent history. shared selects payload decryption.
func (s *SyncService) Pull(ctx context.Context, req *models.SyncPullRequest, shared bool) (*models.SyncPullResponse, error) {
	log := logger.FromContext(ctx)

	vault, err := s.access.requireVault(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "read", ""); err != nil {
		return nil, err
	}
	if shared != vault.IsSharedServer() {
		// The shared path serves only server-encrypted vaults and vice
		// versa; the two payload disciplines must never mix.
		if shared {
			return nil, ErrPlaintextNotAllowed
		}
		return nil, ErrPlaintextRequired
	}

	afterSeq, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	head, err := s.deps.Storages.Items.MaxSeq(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}
	if afterSeq > head {
		return nil, ErrInvalidCursor
	}

	limit := req.Limit
	if limit <= 0 {
		limit = models.DefaultSyncLimit
	}
	if limit > models.MaxSyncLimit {
		limit = models.MaxSyncLimit
	}

	journal, err := s.deps.Storages.Items.ListChangesAfter(ctx, req.VaultID, afterSeq, limit)
	if err != nil {
		return nil, err
	}

	resp := &models.SyncPullResponse{
		Changes:       make([]models.SyncPullChange, 0, len(journal)),
		HasMore:       int64(len(journal)) == limit,
		PushAvailable: s.access.canPush(ctx, vault),
	}

	nextSeq := afterSeq
	for i := range journal {
		row := &journal[i]
		if row.Seq > nextSeq {
			nextSeq = row.Seq
		}
		change, err := s.buildPullChange(ctx, vault, row, shared)
		if err != nil {
			return nil, err
		}
		resp.Changes = append(resp.Changes, *change)
	}
	resp.NextCursor = EncodeCursor(nextSeq)

	log.Debug().
		Str("vault_id", req.VaultID.String()).
		Int("changes", len(resp.Changes)).
		Int64("cursor_seq", nextSeq).
		Msg("sync pull served")
	return resp, nil
}

func (s *SyncService) buildPullChange(ctx context.Context, vault *models.Vault, row *store.JournalRow, shared bool) (*models.SyncPullChange, error) {
	change := &models.SyncPullChange{
		ItemID:    row.ItemID.String(),
		Operation: row.Op,
		Seq:       row.Seq,
		UpdatedAt: row.UpdatedAt,
		Checksum:  row.Checksum,
		Path:      row.Path,
		Name:      row.Name,
		TypeID:    row.TypeID,
	}

	if row.Op != models.ChangeDelete {
		if shared {
			item := &models.Item{ID: row.ItemID, VaultID: vault.ID, PayloadEnc: row.PayloadEnc, Checksum: row.Checksum}
			plaintext, err := decryptItemPayload(s.deps.MasterKey, vault, item)
			if err != nil {
				return nil, err
			}
			change.Payload = json.RawMessage(plaintext)
		} else {
			change.PayloadEnc = row.PayloadEnc
		}
	}

	entries, err := s.deps.Storages.History.ListByItem(ctx, row.ItemID, s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entry := &entries[i]
		wire := models.SyncHistoryEntry{
			Version:        entry.Version,
			Checksum:       entry.Checksum,
			ChangeType:     entry.ChangeType,
			ChangedByName:  entry.ChangedByName,
			ChangedByEmail: entry.ChangedByEmail,
			CreatedAt:      entry.CreatedAt,
		}
		if shared {
			vaultKey, err := unwrapVaultKey(s.deps.MasterKey, vault)
			if err != nil {
				return nil, err
			}
			plaintext, err := crypto.DecryptPayload(vaultKey, vault.ID, entry.ItemID, entry.PayloadEnc)
			vaultKey.Zero()
			if err != nil {
				return nil, err
			}
			wire.Payload = json.RawMessage(plaintext)
		} else {
			wire.PayloadEnc = entry.PayloadEnc
		}
		change.History = append(change.History, wire)
	}
	return change, nil
}

// Push atomically applies a batch of client changes. Conflicting changes
// are reported, not applied, and never abort the batch; any other failure
// rolls the whole batch back.
func (s *SyncService) Push(ctx context.Context, req *models.SyncPushRequest, shared bool) (*models.SyncPushResponse, error) {
	log := logger.FromContext(ctx)

	vault, err := s.access.requireVault(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "write", "")
	if err != nil {
		return nil, err
	}
	if shared != vault.IsSharedServer() {
		if shared {
			return nil, ErrPlaintextNotAllowed
		}
		return nil, ErrPlaintextRequired
	}

	prepared := make([]store.PreparedChange, 0, len(req.Changes))
	for i := range req.Changes {
		change, err := s.prepareChange(vault, &req.Changes[i])
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, *change)
	}

	outcome, err := s.deps.Storages.Items.ApplyChanges(ctx, req.VaultID, prepared, actorSnapshot(identity), s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}

	resp := &models.SyncPushResponse{
		Applied:        make([]string, 0, len(outcome.Applied)),
		AppliedChanges: make([]models.SyncAppliedChange, 0, len(outcome.Applied)),
		Conflicts:      make([]models.SyncPushConflict, 0, len(outcome.Conflicts)),
		NewCursor:      EncodeCursor(outcome.MaxSeq),
	}
	for i := range outcome.Applied {
		applied := &outcome.Applied[i]
		resp.Applied = append(resp.Applied, applied.ItemID.String())
		resp.AppliedChanges = append(resp.AppliedChanges, models.SyncAppliedChange{
			ItemID:    applied.ItemID.String(),
			Seq:       applied.Seq,
			UpdatedAt: applied.UpdatedAt,
			DeletedAt: applied.DeletedAt,
		})
	}
	for i := range outcome.Conflicts {
		conflict := &outcome.Conflicts[i]
		resp.Conflicts = append(resp.Conflicts, models.SyncPushConflict{
			ItemID:          conflict.ItemID.String(),
			Reason:          conflict.Reason,
			ServerSeq:       conflict.ServerSeq,
			ServerUpdatedAt: conflict.ServerUpdatedAt,
		})
	}

	log.Info().
		Str("vault_id", req.VaultID.String()).
		Int("applied", len(resp.Applied)).
		Int("conflicts", len(resp.Conflicts)).
		Msg("sync push applied")
	return resp, nil
}

// prepareChange normalises one push change and resolves its payload under
// the vault's encryption discipline. Guard violations fail the whole
// request: they are malformed input, not per-item conflicts.
func (s *SyncService) prepareChange(vault *models.Vault, change *models.SyncPushChange) (*store.PreparedChange, error) {
	prepared := &store.PreparedChange{
		ItemID:  change.ItemID,
		Op:      change.Operation,
		TypeID:  change.TypeID,
		BaseSeq: change.BaseSeq,
	}

	if change.Path != "" || change.Name != "" {
		var pathPtr, namePtr *string
		if change.Path != "" {
			pathPtr = &change.Path
		}
		if change.Name != "" {
			namePtr = &change.Name
		}
		prepared.Path, prepared.Name = NormalizePathAndName("", pathPtr, namePtr)
	}

	switch change.Operation {
	case models.ChangeCreate, models.ChangeUpdate:
		if change.Operation == models.ChangeCreate && prepared.Path == "" {
			return nil, ErrPathRequired
		}
		if change.PayloadEnc != nil || change.Payload != nil {
			payloadEnc, checksum, err := resolvePayload(s.deps.MasterKey, vault, change.ItemID, change.PayloadEnc, change.Payload, change.Checksum, change.TypeID)
			if err != nil {
				return nil, err
			}
			prepared.PayloadEnc = payloadEnc
			prepared.Checksum = checksum
		} else if change.Operation == models.ChangeCreate {
			if vault.EncryptionType == models.EncryptionClient {
				return nil, ErrPayloadEncRequired
			}
			return nil, ErrPlaintextRequired
		}
	case models.ChangeDelete, models.ChangeRestore:
		// Lifecycle ops carry no payload.
	default:
		return nil, ErrInvalidPayload
	}
	return prepared, nil
}
