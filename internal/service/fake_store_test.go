// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// fakeVaults is an in-memory store.VaultRepository.
type fakeVaults struct {
	vaults  map[uuid.UUID]models.Vault
	members map[uuid.UUID]map[uuid.UUID]models.VaultMemberRole
}

func newFakeVaults() *fakeVaults {
	return &fakeVaults{
		vaults:  map[uuid.UUID]models.Vault{},
		members: map[uuid.UUID]map[uuid.UUID]models.VaultMemberRole{},
	}
}

func (f *fakeVaults) CreateVault(_ context.Context, vault *models.Vault, owner uuid.UUID, role models.VaultMemberRole) error {
	for _, existing := range f.vaults {
		if existing.Slug == vault.Slug && existing.DeletedAt == nil {
			return store.ErrSlugTaken
		}
	}
	vault.RowVersion = 1
	vault.CreatedAt = time.Now().UTC()
	f.vaults[vault.ID] = *vault
	f.members[vault.ID] = map[uuid.UUID]models.VaultMemberRole{owner: role}
	return nil
}

func (f *fakeVaults) GetVault(_ context.Context, id uuid.UUID) (*models.Vault, error) {
	vault, ok := f.vaults[id]
	if !ok {
		return nil, store.ErrVaultNotFound
	}
	return &vault, nil
}

func (f *fakeVaults) GetVaultBySlug(_ context.Context, slug string) (*models.Vault, error) {
	for _, vault := range f.vaults {
		if vault.Slug == slug && vault.DeletedAt == nil {
			return &vault, nil
		}
	}
	return nil, store.ErrVaultNotFound
}

func (f *fakeVaults) ListVaultsForUser(_ context.Context, userID uuid.UUID, includeDeleted bool) ([]models.Vault, error) {
	out := []models.Vault{}
	for id, vault := range f.vaults {
		if _, ok := f.members[id][userID]; !ok {
			continue
		}
		if vault.DeletedAt != nil && !includeDeleted {
			continue
		}
		out = append(out, vault)
	}
	return out, nil
}

func (f *fakeVaults) SoftDeleteVault(_ context.Context, id uuid.UUID) error {
	vault, ok := f.vaults[id]
	if !ok || vault.DeletedAt != nil {
		return store.ErrVaultNotFound
	}
	now := time.Now().UTC()
	vault.DeletedAt = &now
	f.vaults[id] = vault
	return nil
}

func (f *fakeVaults) RestoreVault(_ context.Context, id uuid.UUID) error {
	vault, ok := f.vaults[id]
	if !ok || vault.DeletedAt == nil {
		return store.ErrVaultNotFound
	}
	vault.DeletedAt = nil
	f.vaults[id] = vault
	return nil
}

func (f *fakeVaults) AddMember(_ context.Context, vaultID, userID uuid.UUID, role models.VaultMemberRole) error {
	if f.members[vaultID] == nil {
		f.members[vaultID] = map[uuid.UUID]models.VaultMemberRole{}
	}
	f.members[vaultID][userID] = role
	return nil
}

func (f *fakeVaults) GetMemberRole(_ context.Context, vaultID, userID uuid.UUID) (models.VaultMemberRole, error) {
	role, ok := f.members[vaultID][userID]
	if !ok {
		return 0, store.ErrVaultNotFound
	}
	return role, nil
}

// fakeItems is an in-memory store.ItemRepository mirroring the journal and
// concurrency semantics of the PostgreSQL implementation.
type fakeItems struct {
	items   map[uuid.UUID]models.Item
	journal []models.Change
	history *fakeHistory
}

func newFakeItems(history *fakeHistory) *fakeItems {
	return &fakeItems{items: map[uuid.UUID]models.Item{}, history: history}
}

func (f *fakeItems) GetItem(_ context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return &item, nil
}

func (f *fakeItems) maxSeq(vaultID uuid.UUID) int64 {
	var max int64
	for _, change := range f.journal {
		if change.VaultID == vaultID && change.Seq > max {
			max = change.Seq
		}
	}
	return max
}

func (f *fakeItems) itemMaxSeq(vaultID, itemID uuid.UUID) int64 {
	var max int64
	for _, change := range f.journal {
		if change.VaultID == vaultID && change.ItemID == itemID && change.Seq > max {
			max = change.Seq
		}
	}
	return max
}

func (f *fakeItems) append(vaultID, itemID uuid.UUID, op models.ChangeType, version int64) int64 {
	seq := f.maxSeq(vaultID) + 1
	f.journal = append(f.journal, models.Change{
		Seq: seq, VaultID: vaultID, ItemID: itemID, Op: op,
		Version: version, CreatedAt: time.Now().UTC(),
	})
	return seq
}

func (f *fakeItems) livePathTaken(vaultID uuid.UUID, path string, exclude uuid.UUID) bool {
	for id, item := range f.items {
		if id != exclude && item.VaultID == vaultID && item.Path == path && item.DeletedAt == nil {
			return true
		}
	}
	return false
}

func (f *fakeItems) ApplyChanges(_ context.Context, vaultID uuid.UUID, changes []store.PreparedChange, actor models.ActorSnapshot, historyCap int) (*store.PushOutcome, error) {
	outcome := &store.PushOutcome{}
	for i := range changes {
		change := &changes[i]
		existing, exists := f.items[change.ItemID]
		if exists && existing.VaultID != vaultID {
			exists = false
		}

		if exists {
			currentSeq := f.itemMaxSeq(vaultID, change.ItemID)
			if change.BaseSeq == nil || *change.BaseSeq != currentSeq {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictBaseSeqMismatch,
					ServerSeq: currentSeq, ServerUpdatedAt: existing.UpdatedAt,
				})
				continue
			}
		} else if change.Op != models.ChangeCreate {
			outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
				ItemID: change.ItemID, Reason: models.ConflictBaseSeqMismatch,
			})
			continue
		}

		switch {
		case change.Op == models.ChangeCreate && !exists:
			if f.livePathTaken(vaultID, change.Path, change.ItemID) {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictPath,
				})
				continue
			}
			now := time.Now().UTC()
			item := models.Item{
				ID: change.ItemID, VaultID: vaultID, Path: change.Path, Name: change.Name,
				TypeID: change.TypeID, PayloadEnc: change.PayloadEnc, Checksum: change.Checksum,
				Version: 1, SyncStatus: models.StatusActive, CreatedAt: now, UpdatedAt: now,
			}
			f.items[change.ItemID] = item
			seq := f.append(vaultID, change.ItemID, models.ChangeCreate, 1)
			outcome.Applied = append(outcome.Applied, store.AppliedChange{
				ItemID: change.ItemID, Seq: seq, Version: 1, UpdatedAt: now,
			})

		case change.Op == models.ChangeUpdate, change.Op == models.ChangeCreate && exists:
			path, name, typeID := change.Path, change.Name, change.TypeID
			payloadEnc, checksum := change.PayloadEnc, change.Checksum
			if path == "" {
				path, name = existing.Path, existing.Name
			}
			if typeID == "" {
				typeID = existing.TypeID
			}
			if payloadEnc == nil {
				payloadEnc, checksum = existing.PayloadEnc, existing.Checksum
			}
			if path != existing.Path && f.livePathTaken(vaultID, path, change.ItemID) {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictPath,
					ServerUpdatedAt: existing.UpdatedAt,
				})
				continue
			}
			if checksum != existing.Checksum || typeID != existing.TypeID {
				f.history.record(&existing, models.ChangeUpdate, actor, historyCap)
			}
			existing.Path, existing.Name, existing.TypeID = path, name, typeID
			existing.PayloadEnc, existing.Checksum = payloadEnc, checksum
			existing.Version++
			existing.UpdatedAt = time.Now().UTC()
			f.items[change.ItemID] = existing
			seq := f.append(vaultID, change.ItemID, models.ChangeUpdate, existing.Version)
			outcome.Applied = append(outcome.Applied, store.AppliedChange{
				ItemID: change.ItemID, Seq: seq, Version: existing.Version, UpdatedAt: existing.UpdatedAt,
			})

		case change.Op == models.ChangeDelete:
			if existing.DeletedAt != nil {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictBaseSeqMismatch,
					ServerUpdatedAt: existing.UpdatedAt,
				})
				continue
			}
			now := time.Now().UTC()
			existing.DeletedAt = &now
			existing.SyncStatus = models.StatusTombstone
			existing.Version++
			existing.UpdatedAt = now
			f.items[change.ItemID] = existing
			seq := f.append(vaultID, change.ItemID, models.ChangeDelete, existing.Version)
			outcome.Applied = append(outcome.Applied, store.AppliedChange{
				ItemID: change.ItemID, Seq: seq, Version: existing.Version,
				UpdatedAt: now, DeletedAt: &now,
			})

		case change.Op == models.ChangeRestore:
			if existing.DeletedAt == nil {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictBaseSeqMismatch,
					ServerUpdatedAt: existing.UpdatedAt,
				})
				continue
			}
			if f.livePathTaken(existing.VaultID, existing.Path, existing.ID) {
				outcome.Conflicts = append(outcome.Conflicts, store.ChangeConflict{
					ItemID: change.ItemID, Reason: models.ConflictPath,
					ServerUpdatedAt: existing.UpdatedAt,
				})
				continue
			}
			existing.DeletedAt = nil
			existing.SyncStatus = models.StatusActive
			existing.Version++
			existing.UpdatedAt = time.Now().UTC()
			f.items[change.ItemID] = existing
			seq := f.append(vaultID, change.ItemID, models.ChangeRestore, existing.Version)
			outcome.Applied = append(outcome.Applied, store.AppliedChange{
				ItemID: change.ItemID, Seq: seq, Version: existing.Version, UpdatedAt: existing.UpdatedAt,
			})
		}
	}
	outcome.MaxSeq = f.maxSeq(vaultID)
	return outcome, nil
}

func (f *fakeItems) RestoreVersion(_ context.Context, item *models.Item, hist *models.ItemHistory, actor models.ActorSnapshot, historyCap int) (*store.AppliedChange, error) {
	existing := f.items[item.ID]
	f.history.record(&existing, models.ChangeRestore, actor, historyCap)
	existing.PayloadEnc, existing.Checksum = hist.PayloadEnc, hist.Checksum
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	f.items[item.ID] = existing
	seq := f.append(item.VaultID, item.ID, models.ChangeUpdate, existing.Version)
	return &store.AppliedChange{
		ItemID: item.ID, Seq: seq, Version: existing.Version, UpdatedAt: existing.UpdatedAt,
	}, nil
}

func (f *fakeItems) ListChangesAfter(_ context.Context, vaultID uuid.UUID, afterSeq, limit int64) ([]store.JournalRow, error) {
	rows := []store.JournalRow{}
	for _, change := range f.journal {
		if change.VaultID != vaultID || change.Seq <= afterSeq {
			continue
		}
		item := f.items[change.ItemID]
		rows = append(rows, store.JournalRow{
			Seq: change.Seq, Op: change.Op, ItemID: change.ItemID, Version: change.Version,
			CreatedAt: change.CreatedAt, Path: item.Path, Name: item.Name, TypeID: item.TypeID,
			PayloadEnc: item.PayloadEnc, Checksum: item.Checksum,
			UpdatedAt: item.UpdatedAt, DeletedAt: item.DeletedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	if int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeItems) MaxSeq(_ context.Context, vaultID uuid.UUID) (int64, error) {
	return f.maxSeq(vaultID), nil
}

func (f *fakeItems) ItemMaxSeq(_ context.Context, vaultID, itemID uuid.UUID) (int64, error) {
	return f.itemMaxSeq(vaultID, itemID), nil
}

func (f *fakeItems) ListTrash(_ context.Context, vaultID uuid.UUID) ([]models.Item, error) {
	out := []models.Item{}
	for _, item := range f.items {
		if item.VaultID == vaultID && item.DeletedAt != nil {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeItems) PurgeItem(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return store.ErrItemNotFound
	}
	delete(f.items, id)
	delete(f.history.entries, id)
	return nil
}

func (f *fakeItems) PurgeTrash(_ context.Context, vaultID uuid.UUID, _ int) (int64, error) {
	var purged int64
	for id, item := range f.items {
		if item.VaultID == vaultID && item.DeletedAt != nil {
			delete(f.items, id)
			delete(f.history.entries, id)
			purged++
		}
	}
	return purged, nil
}

// fakeHistory is an in-memory store.HistoryRepository.
type fakeHistory struct {
	entries map[uuid.UUID][]models.ItemHistory
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{entries: map[uuid.UUID][]models.ItemHistory{}}
}

func (f *fakeHistory) record(preImage *models.Item, changeType models.ChangeType, actor models.ActorSnapshot, keep int) {
	entry := models.ItemHistory{
		ID: uuid.New(), ItemID: preImage.ID, PayloadEnc: preImage.PayloadEnc,
		Checksum: preImage.Checksum, Version: preImage.Version, ChangeType: changeType,
		ChangedByEmail: actor.Email, ChangedByName: actor.Name, CreatedAt: time.Now().UTC(),
	}
	entries := append(f.entries[preImage.ID], entry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version > entries[j].Version })
	if len(entries) > keep {
		entries = entries[:keep]
	}
	f.entries[preImage.ID] = entries
}

func (f *fakeHistory) ListByItem(_ context.Context, itemID uuid.UUID, limit int) ([]models.ItemHistory, error) {
	entries := f.entries[itemID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeHistory) GetVersion(_ context.Context, itemID uuid.UUID, version int64) (*models.ItemHistory, error) {
	for _, entry := range f.entries[itemID] {
		if entry.Version == version {
			return &entry, nil
		}
	}
	return nil, store.ErrHistoryNotFound
}

func (f *fakeHistory) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var pruned int64
	for id, entries := range f.entries {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, entry)
		}
		f.entries[id] = kept
	}
	return pruned, nil
}

// fakeRotation is an in-memory store.RotationRepository.
type fakeRotation struct {
	items *fakeItems
}

func (f *fakeRotation) Start(_ context.Context, itemID uuid.UUID, candidateEnc []byte, startedBy uuid.UUID, expiresAt, recoverUntil time.Time) error {
	item, ok := f.items.items[itemID]
	if !ok || item.Rotation.State != models.RotationActive || item.DeletedAt != nil {
		return store.ErrRotationConflict
	}
	startedAt := time.Now().UTC()
	item.Rotation = models.RotationColumns{
		State: models.RotationRotating, CandidateEnc: candidateEnc,
		StartedAt: &startedAt, StartedBy: &startedBy,
		ExpiresAt: &expiresAt, RecoverUntil: &recoverUntil,
	}
	f.items.items[itemID] = item
	return nil
}

func (f *fakeRotation) MarkStaleIfExpired(_ context.Context, item *models.Item, now time.Time) (*models.Item, error) {
	if item.Rotation.Expired(now) {
		item.Rotation.State = models.RotationStale
		stored := f.items.items[item.ID]
		stored.Rotation.State = models.RotationStale
		f.items.items[item.ID] = stored
	}
	return item, nil
}

func (f *fakeRotation) Abort(_ context.Context, itemID uuid.UUID, reason string) error {
	item, ok := f.items.items[itemID]
	if !ok || item.Rotation.State == models.RotationActive {
		return store.ErrRotationConflict
	}
	item.Rotation = models.RotationColumns{AbortedReason: reason}
	f.items.items[itemID] = item
	return nil
}

func (f *fakeRotation) CommitPayload(_ context.Context, item *models.Item, fromState models.RotationState, payloadEnc []byte, checksum string, actor models.ActorSnapshot, historyCap int) (*store.AppliedChange, error) {
	stored, ok := f.items.items[item.ID]
	if !ok || stored.Rotation.State != fromState {
		return nil, store.ErrRotationConflict
	}
	f.items.history.record(&stored, models.ChangeUpdate, actor, historyCap)
	stored.PayloadEnc, stored.Checksum = payloadEnc, checksum
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	stored.Rotation = models.RotationColumns{}
	f.items.items[item.ID] = stored
	seq := f.items.append(item.VaultID, item.ID, models.ChangeUpdate, stored.Version)
	return &store.AppliedChange{
		ItemID: item.ID, Seq: seq, Version: stored.Version, UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (f *fakeRotation) PurgeExpiredCandidates(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	for id, item := range f.items.items {
		if item.Rotation.State == models.RotationStale &&
			item.Rotation.RecoverUntil != nil && item.Rotation.RecoverUntil.Before(now) {
			item.Rotation = models.RotationColumns{}
			f.items.items[id] = item
			purged++
		}
	}
	return purged, nil
}

// newTestServices wires the service layer over the in-memory fakes.
func newTestServices(masterKey *crypto.SecretKey) (*Services, *fakeVaults, *fakeItems) {
	history := newFakeHistory()
	items := newFakeItems(history)
	vaults := newFakeVaults()
	storages := &store.Storages{
		Vaults:   vaults,
		Items:    items,
		History:  history,
		Rotation: &fakeRotation{items: items},
	}
	deps := &Deps{
		Storages:       storages,
		MasterKey:      masterKey,
		HistoryCap:     5,
		RotationTTL:    15 * time.Minute,
		StaleRetention: 24 * time.Hour,
	}
	access := newAccessChecker(vaults)
	return &Services{
		Vaults:   NewVaultService(deps, access),
		Items:    NewItemService(deps, access),
		Sync:     NewSyncService(deps, access),
		Rotation: NewRotationService(deps, access),
		History:  NewHistoryService(deps, access),
	}, vaults, items
}
