// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

// accessChecker resolves the caller identity from the context and decides
// whether it may perform an action on a vault. Humans go through vault
// membership roles; service accounts go through their token scopes and are
// read-only by construction.
type accessChecker struct {
	vaults store.VaultRepository
}

func newAccessChecker(vaults store.VaultRepository) *accessChecker {
	return &accessChecker{vaults: vaults}
}

// requireVault loads a vault and rejects tombstoned ones.
func (a *accessChecker) requireVault(ctx context.Context, vaultID uuid.UUID) (*models.Vault, error) {
	vault, err := a.vaults.GetVault(ctx, vaultID)
	if errors.Is(err, store.ErrVaultNotFound) {
		return nil, ErrVaultNotFound
	}
	if err != nil {
		return nil, err
	}
	if vault.DeletedAt != nil {
		return nil, ErrVaultDeleted
	}
	return vault, nil
}

// authorize checks one action against the vault. Path narrows service-
// account scope checks; pass "" for vault-level operations. Actions:
// read, read_history, read_previous, write, rotate, admin.
func (a *accessChecker) authorize(ctx context.Context, vault *models.Vault, action, path string) (*models.Identity, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, ErrIdentityMissing
	}

	if identity.IsServiceAccount() {
		switch action {
		case "read", "read_history", "read_previous":
		default:
			return nil, ErrHumanRequired
		}
		if !ScopesAllow(identity.Scopes, vault, path, action) {
			return nil, ErrScopeNotMatched
		}
		return identity, nil
	}

	role, err := a.vaults.GetMemberRole(ctx, vault.ID, identity.UserID)
	if errors.Is(err, store.ErrVaultNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, err
	}

	allowed := false
	switch action {
	case "read", "read_history", "read_previous":
		allowed = role.CanRead()
	case "write":
		allowed = role.CanWrite()
	case "rotate":
		allowed = role.CanRotate()
	case "admin":
		allowed = role.CanAdmin()
	}
	if !allowed {
		return nil, ErrAccessDenied
	}
	return identity, nil
}

// canPush reports the push_available hint for a pull response without
// failing the request.
func (a *accessChecker) canPush(ctx context.Context, vault *models.Vault) bool {
	_, err := a.authorize(ctx, vault, "write", "")
	return err == nil
}

// actorSnapshot denormalises the caller into the form history rows store.
func actorSnapshot(identity *models.Identity) models.ActorSnapshot {
	snapshot := models.ActorSnapshot{Email: identity.Email}
	if identity.DeviceID != nil {
		snapshot.DeviceName = identity.DeviceID.String()
	}
	return snapshot
}
