// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

// VaultRepository is the PostgreSQL-backed store for vaults and their
// memberships.
type VaultRepository interface {
	CreateVault(ctx context.Context, vault *models.Vault, owner uuid.UUID, role models.VaultMemberRole) error
	GetVault(ctx context.Context, id uuid.UUID) (*models.Vault, error)
	GetVaultBySlug(ctx context.Context, slug string) (*models.Vault, error)
	ListVaultsForUser(ctx context.Context, userID uuid.UUID, includeDeleted bool) ([]models.Vault, error)
	SoftDeleteVault(ctx context.Context, id uuid.UUID) error
	RestoreVault(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, vaultID, userID uuid.UUID, role models.VaultMemberRole) error
	GetMemberRole(ctx context.Context, vaultID, userID uuid.UUID) (models.VaultMemberRole, error)
}

type vaultRepository struct {
	*DB
	logger *logger.Logger
}

// NewVaultRepository constructs a [VaultRepository] on the given connection.
func NewVaultRepository(db *DB, log *logger.Logger) VaultRepository {
	return &vaultRepository{DB: db, logger: log}
}

// CreateVault inserts the vault and its owner membership in one
// transaction. A live slug collision surfaces as [ErrSlugTaken].
func (r *vaultRepository) CreateVault(ctx context.Context, vault *models.Vault, owner uuid.UUID, role models.VaultMemberRole) error {
	log := logger.FromContext(ctx)

	tags, err := marshalTags(vault.Tags)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	err = r.InTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, createVault,
			vault.ID, vault.Slug, vault.Name, int32(vault.Kind), int32(vault.EncryptionType),
			vault.VaultKeyEnc, int32(vault.CachePolicy), tags,
		)
		if err := row.Scan(&vault.RowVersion, &vault.CreatedAt); err != nil {
			if IsUniqueViolation(err) {
				return ErrSlugTaken
			}
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		if _, err := tx.ExecContext(ctx, addVaultMember, vault.ID, owner, int32(role)); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "vaultRepository.CreateVault").
			Str("slug", vault.Slug).
			Msg("failed to create vault")
		return err
	}
	return nil
}

// GetVault returns the vault row by id, including soft-deleted rows so that
// admin restore can find them; callers check DeletedAt.
func (r *vaultRepository) GetVault(ctx context.Context, id uuid.UUID) (*models.Vault, error) {
	return r.scanVault(r.QueryRowContext(ctx, getVaultByID, id))
}

// GetVaultBySlug returns the live vault with the given slug,
// case-insensitively.
func (r *vaultRepository) GetVaultBySlug(ctx context.Context, slug string) (*models.Vault, error) {
	return r.scanVault(r.QueryRowContext(ctx, getVaultBySlug, slug))
}

// ListVaultsForUser returns the vaults the user is a member of.
func (r *vaultRepository) ListVaultsForUser(ctx context.Context, userID uuid.UUID, includeDeleted bool) ([]models.Vault, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListVaultsQuery(userID, includeDeleted)
	if err != nil {
		return nil, err
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "vaultRepository.ListVaultsForUser").
			Str("user_id", userID.String()).
			Msg("failed to list vaults")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	vaults := make([]models.Vault, 0, 8)
	for rows.Next() {
		vault, err := scanVaultColumns(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return vaults, nil
}

// SoftDeleteVault tombstones a live vault.
func (r *vaultRepository) SoftDeleteVault(ctx context.Context, id uuid.UUID) error {
	return r.execExpectingRow(ctx, softDeleteVault, id)
}

// RestoreVault revives a tombstoned vault.
func (r *vaultRepository) RestoreVault(ctx context.Context, id uuid.UUID) error {
	return r.execExpectingRow(ctx, restoreVault, id)
}

// AddMember upserts a membership row.
func (r *vaultRepository) AddMember(ctx context.Context, vaultID, userID uuid.UUID, role models.VaultMemberRole) error {
	if _, err := r.ExecContext(ctx, addVaultMember, vaultID, userID, int32(role)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// GetMemberRole returns the caller's role in a vault, or
// [ErrVaultNotFound] when no membership exists.
func (r *vaultRepository) GetMemberRole(ctx context.Context, vaultID, userID uuid.UUID) (models.VaultMemberRole, error) {
	var raw int32
	err := r.QueryRowContext(ctx, getMemberRole, vaultID, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVaultNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return models.ParseVaultMemberRole(raw)
}

func (r *vaultRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrVaultNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *vaultRepository) scanVault(row rowScanner) (*models.Vault, error) {
	vault, err := scanVaultColumns(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVaultNotFound
	}
	return vault, err
}

func scanVaultColumns(row rowScanner) (*models.Vault, error) {
	var (
		vault      models.Vault
		kind       int32
		encType    int32
		cachePol   int32
		tagsRaw    []byte
		keyEnc     []byte
	)
	err := row.Scan(
		&vault.ID, &vault.Slug, &vault.Name, &kind, &encType, &keyEnc,
		&cachePol, &tagsRaw, &vault.RowVersion, &vault.DeletedAt, &vault.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if vault.Kind, err = models.ParseVaultKind(kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.EncryptionType, err = models.ParseVaultEncryptionType(encType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if vault.CachePolicy, err = models.ParseCachePolicy(cachePol); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	vault.VaultKeyEnc = keyEnc
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &vault.Tags); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
	}
	return &vault, nil
}

func marshalTags(tags []string) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return json.Marshal(tags)
}
