// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// ItemService implements item CRUD on the authoritative store, enforcing
// the encryption-type guards: client-encrypted vaults move opaque envelope
// bytes, server-encrypted vaults move plaintext JSON that the server seals
// itself.
type ItemService struct {
	deps   *Deps
	access *accessChecker
}

// NewItemService constructs an [ItemService].
func NewItemService(deps *Deps, access *accessChecker) *ItemService {
	return &ItemService{deps: deps, access: access}
}

// CreateItem creates an item in a vault and journals the create.
func (s *ItemService) CreateItem(ctx context.Context, vaultID uuid.UUID, req *models.CreateItemRequest) (*models.MutationResponse, error) {
	log := logger.FromContext(ctx)

	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "write", "")
	if err != nil {
		return nil, err
	}

	path := NormalizePath(req.Path)
	if path == "" {
		return nil, ErrPathRequired
	}

	itemID := newItemID()
	payloadEnc, checksum, err := resolvePayload(s.deps.MasterKey, vault, itemID, req.PayloadEnc, req.Payload, req.Checksum, req.TypeID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.deps.Storages.Items.ApplyChanges(ctx, vaultID, []store.PreparedChange{{
		ItemID:     itemID,
		Op:         models.ChangeCreate,
		PayloadEnc: payloadEnc,
		Checksum:   checksum,
		Path:       path,
		Name:       BasenameFromPath(path),
		TypeID:     req.TypeID,
	}}, actorSnapshot(identity), s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}
	if applied, err := singleOutcome(outcome); err != nil {
		return nil, err
	} else {
		log.Info().
			Str("vault_id", vaultID.String()).
			Str("item_id", itemID.String()).
			Int64("seq", applied.Seq).
			Msg("item created")
		return &models.MutationResponse{
			ItemID:    applied.ItemID.String(),
			Seq:       applied.Seq,
			Version:   applied.Version,
			UpdatedAt: applied.UpdatedAt,
		}, nil
	}
}

// GetItem returns an item, decrypting the payload for server-encrypted
// vaults. Reading also normalises an expired rotation lock to Stale.
func (s *ItemService) GetItem(ctx context.Context, vaultID, itemID uuid.UUID) (*models.ItemResponse, error) {
	vault, item, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "read", item.Path); err != nil {
		return nil, err
	}

	item, err = s.deps.Storages.Rotation.MarkStaleIfExpired(ctx, item, now())
	if err != nil {
		return nil, err
	}

	seq, err := s.deps.Storages.Items.ItemMaxSeq(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}

	resp := &models.ItemResponse{
		ID:        item.ID.String(),
		VaultID:   item.VaultID.String(),
		Path:      item.Path,
		Name:      item.Name,
		TypeID:    item.TypeID,
		Checksum:  item.Checksum,
		Version:   item.Version,
		Seq:       seq,
		DeletedAt: item.DeletedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Rotation.State != models.RotationActive {
		resp.Rotation = item.Rotation.State.String()
	}

	if vault.IsSharedServer() {
		plaintext, err := decryptItemPayload(s.deps.MasterKey, vault, item)
		if err != nil {
			return nil, err
		}
		resp.Payload = json.RawMessage(plaintext)
	} else {
		resp.PayloadEnc = item.PayloadEnc
	}
	return resp, nil
}

// UpdateItem applies a partial update to an item. When the caller supplies
// base_seq, the journal enforces optimistic concurrency; otherwise the
// update is last-write-wins against the current head.
func (s *ItemService) UpdateItem(ctx context.Context, vaultID, itemID uuid.UUID, req *models.UpdateItemRequest) (*models.MutationResponse, error) {
	vault, item, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "write", "")
	if err != nil {
		return nil, err
	}

	path, name := NormalizePathAndName(item.Path, req.Path, req.Name)
	if path == "" {
		return nil, ErrPathRequired
	}

	typeID := item.TypeID
	if req.TypeID != nil && *req.TypeID != "" {
		typeID = *req.TypeID
	}

	var payloadEnc []byte
	var checksum string
	if req.PayloadEnc != nil || req.Payload != nil {
		payloadEnc, checksum, err = resolvePayload(s.deps.MasterKey, vault, itemID, req.PayloadEnc, req.Payload, req.Checksum, typeID)
		if err != nil {
			return nil, err
		}
	}

	baseSeq := req.BaseSeq
	if baseSeq == nil {
		head, err := s.deps.Storages.Items.ItemMaxSeq(ctx, vaultID, itemID)
		if err != nil {
			return nil, err
		}
		baseSeq = &head
	}

	outcome, err := s.deps.Storages.Items.ApplyChanges(ctx, vaultID, []store.PreparedChange{{
		ItemID:     itemID,
		Op:         models.ChangeUpdate,
		PayloadEnc: payloadEnc,
		Checksum:   checksum,
		Path:       path,
		Name:       name,
		TypeID:     typeID,
		BaseSeq:    baseSeq,
	}}, actorSnapshot(identity), s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}
	applied, err := singleOutcome(outcome)
	if err != nil {
		return nil, err
	}
	return &models.MutationResponse{
		ItemID:    applied.ItemID.String(),
		Seq:       applied.Seq,
		Version:   applied.Version,
		UpdatedAt: applied.UpdatedAt,
	}, nil
}

// DeleteItem soft-deletes an item, leaving a tombstone for replication.
func (s *ItemService) DeleteItem(ctx context.Context, vaultID, itemID uuid.UUID) (*models.MutationResponse, error) {
	return s.applyLifecycle(ctx, vaultID, itemID, models.ChangeDelete)
}

// RestoreItem revives a tombstoned item, provided its path is still free.
func (s *ItemService) RestoreItem(ctx context.Context, vaultID, itemID uuid.UUID) (*models.MutationResponse, error) {
	return s.applyLifecycle(ctx, vaultID, itemID, models.ChangeRestore)
}

func (s *ItemService) applyLifecycle(ctx context.Context, vaultID, itemID uuid.UUID, op models.ChangeType) (*models.MutationResponse, error) {
	vault, _, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "write", "")
	if err != nil {
		return nil, err
	}

	head, err := s.deps.Storages.Items.ItemMaxSeq(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.deps.Storages.Items.ApplyChanges(ctx, vaultID, []store.PreparedChange{{
		ItemID:  itemID,
		Op:      op,
		BaseSeq: &head,
	}}, actorSnapshot(identity), s.deps.HistoryCap)
	if err != nil {
		return nil, err
	}
	applied, err := singleOutcome(outcome)
	if err != nil {
		return nil, err
	}
	return &models.MutationResponse{
		ItemID:    applied.ItemID.String(),
		Seq:       applied.Seq,
		Version:   applied.Version,
		UpdatedAt: applied.UpdatedAt,
	}, nil
}

// PurgeItem hard-deletes an item and its entire history. No journal row is
// written.
func (s *ItemService) PurgeItem(ctx context.Context, vaultID, itemID uuid.UUID) error {
	vault, _, err := s.loadVaultItem(ctx, vaultID, itemID)
	if err != nil {
		return err
	}
	if _, err := s.access.authorize(ctx, vault, "write", ""); err != nil {
		return err
	}
	if err := s.deps.Storages.Items.PurgeItem(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// ListTrash lists tombstoned items of a vault.
func (s *ItemService) ListTrash(ctx context.Context, vaultID uuid.UUID) ([]models.Item, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "read", ""); err != nil {
		return nil, err
	}
	return s.deps.Storages.Items.ListTrash(ctx, vaultID)
}

// PurgeTrash hard-deletes tombstoned items of a vault, optionally only
// those older than the given number of days.
func (s *ItemService) PurgeTrash(ctx context.Context, vaultID uuid.UUID, olderThanDays int) (int64, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return 0, err
	}
	if _, err := s.access.authorize(ctx, vault, "write", ""); err != nil {
		return 0, err
	}
	return s.deps.Storages.Items.PurgeTrash(ctx, vaultID, olderThanDays)
}

func (s *ItemService) loadVaultItem(ctx context.Context, vaultID, itemID uuid.UUID) (*models.Vault, *models.Item, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.deps.Storages.Items.GetItem(ctx, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if item.VaultID != vaultID {
		return nil, nil, ErrItemNotFound
	}
	return vault, item, nil
}

// resolvePayload enforces the encryption-type guard and produces the stored
// ciphertext plus its checksum.
//
// Client-encrypted vaults accept only the canonical envelope in payload_enc
// (anything that does not parse is rejected before touching the row) and
// refuse plaintext. Server-encrypted vaults accept only plaintext JSON,
// validate it against the item type, and seal it under the vault key.
func resolvePayload(masterKey *crypto.SecretKey, vault *models.Vault, itemID uuid.UUID, payloadEnc []byte, payload json.RawMessage, checksum, typeID string) ([]byte, string, error) {
	if vault.EncryptionType == models.EncryptionClient {
		if payload != nil {
			return nil, "", ErrPlaintextNotAllowed
		}
		if len(payloadEnc) == 0 {
			return nil, "", ErrPayloadEncRequired
		}
		if _, err := crypto.ParseBlob(payloadEnc); err != nil {
			return nil, "", err
		}
		computed := crypto.PayloadChecksum(payloadEnc)
		if checksum != "" && checksum != computed {
			return nil, "", ErrPayloadCorrupted
		}
		return payloadEnc, computed, nil
	}

	if len(payloadEnc) > 0 {
		return nil, "", ErrPlaintextRequired
	}
	if len(payload) == 0 {
		return nil, "", ErrPlaintextRequired
	}

	doc, err := models.ParseItemPayload(payload)
	if err != nil {
		return nil, "", ErrInvalidPayload
	}
	if err := doc.ValidateForType(typeID); err != nil {
		return nil, "", ErrInvalidPayload
	}
	plaintext, err := doc.Bytes()
	if err != nil {
		return nil, "", ErrInvalidPayload
	}

	vaultKey, err := unwrapVaultKey(masterKey, vault)
	if err != nil {
		return nil, "", err
	}
	defer vaultKey.Zero()

	sealed, err := crypto.EncryptPayload(vaultKey, vault.ID, itemID, plaintext)
	if err != nil {
		return nil, "", err
	}
	return sealed, crypto.PayloadChecksum(sealed), nil
}

// decryptItemPayload opens an item's payload with the server-held vault
// key, verifying the stored checksum first.
func decryptItemPayload(masterKey *crypto.SecretKey, vault *models.Vault, item *models.Item) ([]byte, error) {
	if err := crypto.VerifyChecksum(item.PayloadEnc, item.Checksum); err != nil {
		return nil, ErrPayloadCorrupted
	}
	vaultKey, err := unwrapVaultKey(masterKey, vault)
	if err != nil {
		return nil, err
	}
	defer vaultKey.Zero()

	return crypto.DecryptPayload(vaultKey, vault.ID, item.ID, item.PayloadEnc)
}

// singleOutcome converts the one-change ApplyChanges result into either the
// applied change or the matching sentinel error.
func singleOutcome(outcome *store.PushOutcome) (*store.AppliedChange, error) {
	if len(outcome.Conflicts) > 0 {
		switch outcome.Conflicts[0].Reason {
		case models.ConflictPath:
			return nil, ErrPathConflict
		default:
			return nil, ErrBaseSeqMismatch
		}
	}
	if len(outcome.Applied) == 0 {
		return nil, ErrItemNotFound
	}
	return &outcome.Applied[0], nil
}
