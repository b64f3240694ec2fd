// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/models"
)

// Candidate character sets. Visually ambiguous characters (I, l, 0, 1, O)
// are excluded so rotated credentials survive being read aloud.
const (
	rotationUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	rotationLower   = "abcdefghijkmnopqrstuvwxyz"
	rotationDigits  = "23456789"
	rotationSymbols = "!@#$%^&*_-+=?"
	rotationLength  = 24
)

// RotationService drives the credential-rotation state machine for shared
// server items: start generates and locks a candidate, commit applies it,
// abort discards it, and recover applies a candidate whose lock went stale.
type RotationService struct {
	deps   *Deps
	access *accessChecker
}

// NewRotationService constructs a [RotationService].
func NewRotationService(deps *Deps, access *accessChecker) *RotationService {
	return &RotationService{deps: deps, access: access}
}

// Start generates a candidate under the given policy and moves the item
// from Active to Rotating. The cleartext candidate is returned once, here;
// at rest it exists only wrapped under the vault key.
func (s *RotationService) Start(ctx context.Context, vaultID, itemID uuid.UUID, policy string) (*models.RotationCandidateResponse, error) {
	log := logger.FromContext(ctx)

	vault, item, err := s.loadRotatable(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "rotate", "")
	if err != nil {
		return nil, err
	}
	if s.deps.MasterKey == nil {
		return nil, ErrServerKeyMissing
	}

	item, err = s.deps.Storages.Rotation.MarkStaleIfExpired(ctx, item, now())
	if err != nil {
		return nil, err
	}
	if item.Rotation.State != models.RotationActive {
		return nil, ErrRotationInProgress
	}

	// The item must actually hold a rotatable credential.
	plaintext, err := decryptItemPayload(s.deps.MasterKey, vault, item)
	if err != nil {
		return nil, err
	}
	doc, err := models.ParseItemPayload(plaintext)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	if !doc.HasPasswordField() {
		return nil, ErrPasswordFieldMissing
	}

	candidate, err := GeneratePassword(policy)
	if err != nil {
		return nil, err
	}

	vaultKey, err := unwrapVaultKey(s.deps.MasterKey, vault)
	if err != nil {
		return nil, err
	}
	candidateEnc, err := crypto.EncryptRotationCandidate(vaultKey, vault.ID, item.ID, []byte(candidate))
	vaultKey.Zero()
	if err != nil {
		return nil, err
	}

	expiresAt := now().Add(s.deps.RotationTTL)
	recoverUntil := expiresAt.Add(s.deps.StaleRetention)
	err = s.deps.Storages.Rotation.Start(ctx, item.ID, candidateEnc, identity.UserID, expiresAt, recoverUntil)
	if errors.Is(err, store.ErrRotationConflict) {
		return nil, ErrRotationInProgress
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", item.ID.String()).
		Str("policy", policyOrDefault(policy)).
		Msg("rotation started")
	return &models.RotationCandidateResponse{
		State:        models.RotationRotating.String(),
		Candidate:    candidate,
		ExpiresAt:    &expiresAt,
		RecoverUntil: &recoverUntil,
	}, nil
}

// Commit applies the candidate of a Rotating, unexpired item: the password
// fields take the candidate value, the payload is resealed, version bumps,
// history records the pre-image, and the journal gains an update row.
func (s *RotationService) Commit(ctx context.Context, vaultID, itemID uuid.UUID) (*models.MutationResponse, error) {
	vault, item, err := s.loadRotatable(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "rotate", "")
	if err != nil {
		return nil, err
	}

	item, err = s.deps.Storages.Rotation.MarkStaleIfExpired(ctx, item, now())
	if err != nil {
		return nil, err
	}
	switch item.Rotation.State {
	case models.RotationRotating:
	case models.RotationStale:
		return nil, ErrRotationExpired
	default:
		return nil, ErrRotationNotStarted
	}

	return s.applyCandidate(ctx, vault, item, models.RotationRotating, identity)
}

// Recover applies the candidate of a Stale item, as if commit had happened
// before the lock expired. Only valid inside the recover window.
func (s *RotationService) Recover(ctx context.Context, vaultID, itemID uuid.UUID) (*models.MutationResponse, error) {
	vault, item, err := s.loadRotatable(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	identity, err := s.access.authorize(ctx, vault, "rotate", "")
	if err != nil {
		return nil, err
	}

	item, err = s.deps.Storages.Rotation.MarkStaleIfExpired(ctx, item, now())
	if err != nil {
		return nil, err
	}
	if item.Rotation.State != models.RotationStale {
		return nil, ErrRotationNotStarted
	}
	if !item.Rotation.Recoverable(now()) {
		return nil, ErrRotationExpired
	}

	return s.applyCandidate(ctx, vault, item, models.RotationStale, identity)
}

// Abort discards the candidate from Rotating or Stale and records why.
func (s *RotationService) Abort(ctx context.Context, vaultID, itemID uuid.UUID, reason string) (*models.RotationStatusResponse, error) {
	vault, item, err := s.loadRotatable(ctx, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "rotate", ""); err != nil {
		return nil, err
	}

	item, err = s.deps.Storages.Rotation.MarkStaleIfExpired(ctx, item, now())
	if err != nil {
		return nil, err
	}
	if item.Rotation.State == models.RotationActive {
		return nil, ErrRotationNotStarted
	}

	err = s.deps.Storages.Rotation.Abort(ctx, item.ID, reason)
	if errors.Is(err, store.ErrRotationConflict) {
		return nil, ErrRotationNotStarted
	}
	if err != nil {
		return nil, err
	}
	return &models.RotationStatusResponse{
		State:         models.RotationActive.String(),
		AbortedReason: reason,
	}, nil
}

// Status reports the normalised rotation state of an item.
func (s *RotationService) Status(ctx context.Context, vaultID, itemID uuid.UUID) (*models.RotationStatusResponse, error) {
	vault, item, err := s.loadRotatable(ctx, vaultID, itemID)
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

	return &models.RotationStatusResponse{
		State:         item.Rotation.State.String(),
		StartedAt:     item.Rotation.StartedAt,
		ExpiresAt:     item.Rotation.ExpiresAt,
		RecoverUntil:  item.Rotation.RecoverUntil,
		AbortedReason: item.Rotation.AbortedReason,
	}, nil
}

func (s *RotationService) applyCandidate(ctx context.Context, vault *models.Vault, item *models.Item, fromState models.RotationState, identity *models.Identity) (*models.MutationResponse, error) {
	log := logger.FromContext(ctx)

	vaultKey, err := unwrapVaultKey(s.deps.MasterKey, vault)
	if err != nil {
		return nil, err
	}
	defer vaultKey.Zero()

	candidateBytes, err := crypto.DecryptRotationCandidate(vaultKey, vault.ID, item.ID, item.Rotation.CandidateEnc)
	if err != nil {
		return nil, ErrCandidateInvalid
	}

	plaintext, err := crypto.DecryptPayload(vaultKey, vault.ID, item.ID, item.PayloadEnc)
	if err != nil {
		return nil, err
	}
	doc, err := models.ParseItemPayload(plaintext)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	doc.SetPassword(string(candidateBytes))

	updated, err := doc.Bytes()
	if err != nil {
		return nil, ErrInvalidPayload
	}
	sealed, err := crypto.EncryptPayload(vaultKey, vault.ID, item.ID, updated)
	if err != nil {
		return nil, err
	}

	applied, err := s.deps.Storages.Rotation.CommitPayload(ctx, item, fromState, sealed, crypto.PayloadChecksum(sealed), actorSnapshot(identity), s.deps.HistoryCap)
	if errors.Is(err, store.ErrRotationConflict) {
		return nil, ErrRotationNotStarted
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", item.ID.String()).
		Int64("seq", applied.Seq).
		Msg("rotation candidate applied")
	return &models.MutationResponse{
		ItemID:    applied.ItemID.String(),
		Seq:       applied.Seq,
		Version:   applied.Version,
		UpdatedAt: applied.UpdatedAt,
	}, nil
}

// loadRotatable loads the item and its vault and verifies the vault is a
// shared server vault; rotation exists only where the server holds the key.
func (s *RotationService) loadRotatable(ctx context.Context, vaultID, itemID uuid.UUID) (*models.Vault, *models.Item, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	if !vault.IsSharedServer() {
		return nil, nil, ErrItemNotFound
	}
	item, err := s.deps.Storages.Items.GetItem(ctx, itemID)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if item.VaultID != vaultID || item.DeletedAt != nil {
		return nil, nil, ErrItemNotFound
	}
	return vault, item, nil
}

// GeneratePassword produces a rotation candidate under the named policy.
//
//	default — 24 chars with at least one upper, lower, digit, and symbol
//	alnum   — 24 alphanumeric chars
//
// An unknown policy is ErrInvalidPolicy.
func GeneratePassword(policy string) (string, error) {
	switch policyOrDefault(policy) {
	case "default":
		chars := make([]byte, 0, rotationLength)
		for _, set := range []string{rotationUpper, rotationLower, rotationDigits, rotationSymbols} {
			c, err := pickChar(set)
			if err != nil {
				return "", err
			}
			chars = append(chars, c)
		}
		all := rotationUpper + rotationLower + rotationDigits + rotationSymbols
		for len(chars) < rotationLength {
			c, err := pickChar(all)
			if err != nil {
				return "", err
			}
			chars = append(chars, c)
		}
		if err := shuffle(chars); err != nil {
			return "", err
		}
		return string(chars), nil
	case "alnum":
		charset := rotationUpper + rotationLower + rotationDigits
		chars := make([]byte, rotationLength)
		for i := range chars {
			c, err := pickChar(charset)
			if err != nil {
				return "", err
			}
			chars[i] = c
		}
		return string(chars), nil
	default:
		return "", ErrInvalidPolicy
	}
}

func policyOrDefault(policy string) string {
	if policy == "" {
		return "default"
	}
	return policy
}

func pickChar(set string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("candidate generation: %w", err)
	}
	return set[idx.Int64()], nil
}

func shuffle(chars []byte) error {
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("candidate generation: %w", err)
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}
	return nil
}
