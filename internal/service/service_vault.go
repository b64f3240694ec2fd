// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

// VaultService manages vault lifecycle and membership.
type VaultService struct {
	deps   *Deps
	access *accessChecker
}

// NewVaultService constructs a [VaultService].
func NewVaultService(deps *Deps, access *accessChecker) *VaultService {
	return &VaultService{deps: deps, access: access}
}

// CreateVault creates a vault owned by the caller.
//
// Personal vaults are always client-encrypted; the request may carry the
// owner's wrapped vault key for recovery but the server never learns the
// key itself. Shared vaults default to server encryption, in which case the
// server generates a vault key and wraps it under the master key.
func (s *VaultService) CreateVault(ctx context.Context, req *models.CreateVaultRequest) (*models.Vault, error) {
	log := logger.FromContext(ctx)

	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, ErrIdentityMissing
	}
	if identity.IsServiceAccount() {
		return nil, ErrHumanRequired
	}

	slug := strings.TrimSpace(req.Slug)
	if slug == "" || strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidPayload
	}

	kind := req.Kind
	if kind != models.VaultKindPersonal && kind != models.VaultKindShared {
		return nil, ErrInvalidPayload
	}

	encType := req.EncryptionType
	if encType == 0 {
		if kind == models.VaultKindPersonal {
			encType = models.EncryptionClient
		} else {
			encType = models.EncryptionServer
		}
	}
	// A personal vault is client-encrypted by definition.
	if kind == models.VaultKindPersonal && encType != models.EncryptionClient {
		return nil, ErrInvalidPayload
	}

	cachePolicy := req.CachePolicy
	if cachePolicy == 0 {
		cachePolicy = models.CacheFull
	}

	vault := &models.Vault{
		ID:             utils.NewUUID(),
		Slug:           slug,
		Name:           strings.TrimSpace(req.Name),
		Kind:           kind,
		EncryptionType: encType,
		CachePolicy:    cachePolicy,
		Tags:           req.Tags,
		VaultKeyEnc:    req.VaultKeyEnc,
	}

	if encType == models.EncryptionServer {
		if s.deps.MasterKey == nil {
			return nil, ErrServerKeyMissing
		}
		vaultKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		defer vaultKey.Zero()

		vault.VaultKeyEnc, err = crypto.EncryptVaultKey(s.deps.MasterKey, vault.ID, vaultKey)
		if err != nil {
			return nil, err
		}
	}

	err := s.deps.Storages.Vaults.CreateVault(ctx, vault, identity.UserID, models.RoleAdmin)
	if errors.Is(err, store.ErrSlugTaken) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("vault_id", vault.ID.String()).
		Str("slug", vault.Slug).
		Msg("vault created")
	return vault, nil
}

// GetVault returns a vault the caller can read.
func (s *VaultService) GetVault(ctx context.Context, vaultID uuid.UUID) (*models.Vault, error) {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.authorize(ctx, vault, "read", ""); err != nil {
		return nil, err
	}
	return vault, nil
}

// ListVaults returns the caller's vaults. Service accounts are refused with
// ErrHumanRequired; they address vaults directly through their scopes.
func (s *VaultService) ListVaults(ctx context.Context) ([]models.Vault, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, ErrIdentityMissing
	}
	if identity.IsServiceAccount() {
		return nil, ErrHumanRequired
	}
	return s.deps.Storages.Vaults.ListVaultsForUser(ctx, identity.UserID, false)
}

// DeleteVault tombstones a vault. Requires the Admin role.
func (s *VaultService) DeleteVault(ctx context.Context, vaultID uuid.UUID) error {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return err
	}
	if _, err := s.access.authorize(ctx, vault, "admin", ""); err != nil {
		return err
	}
	if err := s.deps.Storages.Vaults.SoftDeleteVault(ctx, vaultID); err != nil {
		if errors.Is(err, store.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		return err
	}
	return nil
}

// RestoreVault revives a tombstoned vault. Requires the Admin role, checked
// against the tombstoned row since requireVault would reject it.
func (s *VaultService) RestoreVault(ctx context.Context, vaultID uuid.UUID) error {
	vault, err := s.deps.Storages.Vaults.GetVault(ctx, vaultID)
	if errors.Is(err, store.ErrVaultNotFound) {
		return ErrVaultNotFound
	}
	if err != nil {
		return err
	}
	if _, err := s.access.authorize(ctx, vault, "admin", ""); err != nil {
		return err
	}
	if err := s.deps.Storages.Vaults.RestoreVault(ctx, vaultID); err != nil {
		if errors.Is(err, store.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		return err
	}
	return nil
}

// AddMember grants a role in the vault. Requires the Admin role.
func (s *VaultService) AddMember(ctx context.Context, vaultID, userID uuid.UUID, role models.VaultMemberRole) error {
	vault, err := s.access.requireVault(ctx, vaultID)
	if err != nil {
		return err
	}
	if _, err := s.access.authorize(ctx, vault, "admin", ""); err != nil {
		return err
	}
	if _, err := models.ParseVaultMemberRole(int32(role)); err != nil {
		return ErrInvalidPayload
	}
	return s.deps.Storages.Vaults.AddMember(ctx, vaultID, userID, role)
}

// unwrapVaultKey recovers the vault key of a server-encrypted vault using
// the server master key. Callers must Zero the returned key.
func (s *VaultService) unwrapVaultKey(vault *models.Vault) (*crypto.SecretKey, error) {
	return unwrapVaultKey(s.deps.MasterKey, vault)
}

func unwrapVaultKey(masterKey *crypto.SecretKey, vault *models.Vault) (*crypto.SecretKey, error) {
	if masterKey == nil {
		return nil, ErrServerKeyMissing
	}
	key, err := crypto.DecryptVaultKey(masterKey, vault.ID, vault.VaultKeyEnc)
	if err != nil {
		return nil, err
	}
	return key, nil
}
