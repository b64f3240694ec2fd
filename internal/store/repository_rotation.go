// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/models"
)

const (
	rotationStart = `
		UPDATE items
		SET rotation_state = $2,
			rotation_candidate_enc = $3,
			rotation_started_at = $4,
			rotation_started_by = $5,
			rotation_expires_at = $6,
			rotation_recover_until = $7,
			rotation_aborted_reason = NULL
		WHERE id = $1
		  AND rotation_state IS NULL
		  AND deleted_at IS NULL;`

	rotationMarkStale = `
		UPDATE items
		SET rotation_state = $2
		WHERE id = $1 AND rotation_state = $3;`

	rotationAbort = `
		UPDATE items
		SET rotation_state = NULL,
			rotation_candidate_enc = NULL,
			rotation_started_at = NULL,
			rotation_started_by = NULL,
			rotation_expires_at = NULL,
			rotation_recover_until = NULL,
			rotation_aborted_reason = $2
		WHERE id = $1 AND rotation_state IN ($3, $4);`

	rotationCommitPayload = `
		UPDATE items
		SET payload_enc = $2,
			checksum = $3,
			version = version + 1,
			row_version = row_version + 1,
			updated_at = NOW(),
			rotation_state = NULL,
			rotation_candidate_enc = NULL,
			rotation_started_at = NULL,
			rotation_started_by = NULL,
			rotation_expires_at = NULL,
			rotation_recover_until = NULL,
			rotation_aborted_reason = NULL
		WHERE id = $1 AND rotation_state = $4
		RETURNING version, updated_at;`

	rotationPurgeExpired = `
		UPDATE items
		SET rotation_state = NULL,
			rotation_candidate_enc = NULL,
			rotation_started_at = NULL,
			rotation_started_by = NULL,
			rotation_expires_at = NULL,
			rotation_recover_until = NULL
		WHERE rotation_state = $1 AND rotation_recover_until < $2;`
)

// RotationRepository drives the rotation state machine with conditional
// updates. Every transition carries its expected current state in the WHERE
// clause; a transition that matches no row lost a race and returns
// [ErrRotationConflict].
type RotationRepository interface {
	Start(ctx context.Context, itemID uuid.UUID, candidateEnc []byte, startedBy uuid.UUID, expiresAt, recoverUntil time.Time) error
	MarkStaleIfExpired(ctx context.Context, item *models.Item, now time.Time) (*models.Item, error)
	Abort(ctx context.Context, itemID uuid.UUID, reason string) error
	CommitPayload(ctx context.Context, item *models.Item, fromState models.RotationState, payloadEnc []byte, checksum string, actor models.ActorSnapshot, historyCap int) (*AppliedChange, error)
	PurgeExpiredCandidates(ctx context.Context, now time.Time) (int64, error)
}

type rotationRepository struct {
	*DB
	items  *itemRepository
	logger *logger.Logger
}

// NewRotationRepository constructs a [RotationRepository] sharing the item
// repository's journal and history helpers.
func NewRotationRepository(db *DB, log *logger.Logger) RotationRepository {
	return &rotationRepository{
		DB:     db,
		items:  &itemRepository{DB: db, logger: log},
		logger: log,
	}
}

// Start moves an Active item to Rotating, storing the wrapped candidate and
// the lock window. Fails [ErrRotationConflict] when the item is not Active.
func (r *rotationRepository) Start(ctx context.Context, itemID uuid.UUID, candidateEnc []byte, startedBy uuid.UUID, expiresAt, recoverUntil time.Time) error {
	res, err := r.ExecContext(ctx, rotationStart,
		itemID, string(models.RotationRotating), candidateEnc,
		time.Now().UTC(), startedBy, expiresAt, recoverUntil,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrRotationConflict
	}
	return nil
}

// MarkStaleIfExpired normalises rotation state on read: a Rotating item
// whose lock has expired becomes Stale. The returned item reflects the
// normalised state. Losing the conditional update to a concurrent reader is
// fine; both end at Stale.
func (r *rotationRepository) MarkStaleIfExpired(ctx context.Context, item *models.Item, now time.Time) (*models.Item, error) {
	if !item.Rotation.Expired(now) {
		return item, nil
	}

	_, err := r.ExecContext(ctx, rotationMarkStale,
		item.ID, string(models.RotationStale), string(models.RotationRotating),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	item.Rotation.State = models.RotationStale
	return item, nil
}

// Abort discards the candidate and returns the item to Active from either
// Rotating or Stale, recording the reason.
func (r *rotationRepository) Abort(ctx context.Context, itemID uuid.UUID, reason string) error {
	res, err := r.ExecContext(ctx, rotationAbort,
		itemID, nullIfEmpty(reason), string(models.RotationRotating), string(models.RotationStale),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrRotationConflict
	}
	return nil
}

// CommitPayload applies the candidate as the new item payload in one
// transaction: pre-image history, conditional payload swap clearing the
// rotation columns, and an update journal row. fromState is Rotating for
// commit and Stale for recover.
func (r *rotationRepository) CommitPayload(ctx context.Context, item *models.Item, fromState models.RotationState, payloadEnc []byte, checksum string, actor models.ActorSnapshot, historyCap int) (*AppliedChange, error) {
	log := logger.FromContext(ctx)

	var applied *AppliedChange
	err := r.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, lockVaultJournal, item.VaultID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		if err := r.items.writeHistory(ctx, tx, item, models.ChangeUpdate, actor, historyCap); err != nil {
			return err
		}

		var version int64
		var updatedAt time.Time
		err := tx.QueryRowContext(ctx, rotationCommitPayload,
			item.ID, payloadEnc, checksum, string(fromState),
		).Scan(&version, &updatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRotationConflict
			}
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		seq, err := r.items.appendJournal(ctx, tx, item.VaultID, item.ID, models.ChangeUpdate, version)
		if err != nil {
			return err
		}
		applied = &AppliedChange{ItemID: item.ID, Seq: seq, Version: version, UpdatedAt: updatedAt}
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "rotationRepository.CommitPayload").
			Str("item_id", item.ID.String()).
			Msg("rotation commit failed")
		return nil, err
	}
	return applied, nil
}

// PurgeExpiredCandidates wipes candidates whose recover window has passed.
// Run by the background rotation pruner.
func (r *rotationRepository) PurgeExpiredCandidates(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.ExecContext(ctx, rotationPurgeExpired, string(models.RotationStale), now)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return res.RowsAffected()
}
