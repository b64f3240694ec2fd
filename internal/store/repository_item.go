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

// PreparedChange is one normalised mutation ready for the journal. The
// service layer resolves encryption and path rules before building it; the
// repository only enforces journal and concurrency invariants.
type PreparedChange struct {
	ItemID     uuid.UUID
	Op         models.ChangeType
	PayloadEnc []byte
	Checksum   string
	Path       string
	Name       string
	TypeID     string
	BaseSeq    *int64
}

// AppliedChange reports the server state assigned to an applied change.
type AppliedChange struct {
	ItemID    uuid.UUID
	Seq       int64
	Version   int64
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ChangeConflict reports a change the journal refused without failing the
// batch.
type ChangeConflict struct {
	ItemID          uuid.UUID
	Reason          string
	ServerSeq       int64
	ServerUpdatedAt time.Time
}

// PushOutcome is the result of one atomic batch apply.
type PushOutcome struct {
	Applied   []AppliedChange
	Conflicts []ChangeConflict
	MaxSeq    int64
}

// JournalRow is one journal entry joined with the current item state, the
// unit a sync pull returns.
type JournalRow struct {
	Seq        int64
	Op         models.ChangeType
	ItemID     uuid.UUID
	Version    int64
	CreatedAt  time.Time
	Path       string
	Name       string
	TypeID     string
	PayloadEnc []byte
	Checksum   string
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// ItemRepository is the PostgreSQL-backed authoritative item store with its
// per-vault change journal.
type ItemRepository interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ApplyChanges(ctx context.Context, vaultID uuid.UUID, changes []PreparedChange, actor models.ActorSnapshot, historyCap int) (*PushOutcome, error)
	RestoreVersion(ctx context.Context, item *models.Item, hist *models.ItemHistory, actor models.ActorSnapshot, historyCap int) (*AppliedChange, error)
	ListChangesAfter(ctx context.Context, vaultID uuid.UUID, afterSeq, limit int64) ([]JournalRow, error)
	MaxSeq(ctx context.Context, vaultID uuid.UUID) (int64, error)
	ItemMaxSeq(ctx context.Context, vaultID, itemID uuid.UUID) (int64, error)
	ListTrash(ctx context.Context, vaultID uuid.UUID) ([]models.Item, error)
	PurgeItem(ctx context.Context, id uuid.UUID) error
	PurgeTrash(ctx context.Context, vaultID uuid.UUID, olderThanDays int) (int64, error)
}

type itemRepository struct {
	*DB
	logger *logger.Logger
}

// NewItemRepository constructs an [ItemRepository] on the given connection.
func NewItemRepository(db *DB, log *logger.Logger) ItemRepository {
	return &itemRepository{DB: db, logger: log}
}

// GetItem loads an item row (live or tombstoned) by id.
func (r *itemRepository) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := scanItem(r.QueryRowContext(ctx, getItemByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// ApplyChanges applies a batch of prepared changes inside one transaction.
//
// The per-vault advisory lock taken at the start serialises journal seq
// allocation against every other writer of the vault. Changes apply in input
// order; a conflicting change is recorded and skipped, a failing change
// aborts the whole transaction. This is the single code path behind item
// CRUD, personal push, and shared push, which is what makes the journal
// invariants uniform.
func (r *itemRepository) ApplyChanges(ctx context.Context, vaultID uuid.UUID, changes []PreparedChange, actor models.ActorSnapshot, historyCap int) (*PushOutcome, error) {
	log := logger.FromContext(ctx)

	outcome := &PushOutcome{}
	err := r.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, lockVaultJournal, vaultID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		for i := range changes {
			change := &changes[i]
			applied, conflict, err := r.applyOne(ctx, tx, vaultID, change, actor, historyCap)
			if err != nil {
				log.Err(err).
					Str("func", "itemRepository.ApplyChanges").
					Str("vault_id", vaultID.String()).
					Str("item_id", change.ItemID.String()).
					Msg("change failed, rolling back batch")
				return err
			}
			if conflict != nil {
				outcome.Conflicts = append(outcome.Conflicts, *conflict)
				continue
			}
			outcome.Applied = append(outcome.Applied, *applied)
		}

		return tx.QueryRowContext(ctx, maxVaultSeq, vaultID).Scan(&outcome.MaxSeq)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// applyOne applies a single change on the open transaction. A returned
// conflict skips the change; a returned error aborts the batch.
func (r *itemRepository) applyOne(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, change *PreparedChange, actor models.ActorSnapshot, historyCap int) (*AppliedChange, *ChangeConflict, error) {
	current, err := scanItemMaybe(tx.QueryRowContext(ctx, getItemByID, change.ItemID))
	if err != nil {
		return nil, nil, err
	}
	if current != nil && current.VaultID != vaultID {
		// An item id may never hop vaults; treat as unknown in this vault.
		current = nil
	}

	var currentSeq int64
	if current != nil {
		if err := tx.QueryRowContext(ctx, maxItemSeq, vaultID, change.ItemID).Scan(&currentSeq); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	// Optimistic concurrency. An existing item requires base_seq to match
	// its latest journal seq; a re-sent, already-applied change fails here
	// by construction, which is what makes pushes idempotent.
	if current != nil {
		if change.BaseSeq == nil || *change.BaseSeq != currentSeq {
			return nil, &ChangeConflict{
				ItemID:          change.ItemID,
				Reason:          models.ConflictBaseSeqMismatch,
				ServerSeq:       currentSeq,
				ServerUpdatedAt: current.UpdatedAt,
			}, nil
		}
	} else if change.Op != models.ChangeCreate {
		// Nothing to update or delete; report as a concurrency conflict so
		// the batch survives and the client resolves on next pull.
		return nil, &ChangeConflict{
			ItemID: change.ItemID,
			Reason: models.ConflictBaseSeqMismatch,
		}, nil
	}

	switch change.Op {
	case models.ChangeCreate:
		if current != nil {
			// Same id, matching base_seq: replay of a create over an
			// existing row behaves as an update.
			return r.applyUpdate(ctx, tx, vaultID, current, change, actor, historyCap)
		}
		return r.applyCreate(ctx, tx, vaultID, change)
	case models.ChangeUpdate:
		return r.applyUpdate(ctx, tx, vaultID, current, change, actor, historyCap)
	case models.ChangeDelete:
		return r.applyDelete(ctx, tx, vaultID, current)
	case models.ChangeRestore:
		return r.applyRestore(ctx, tx, vaultID, current)
	}
	return nil, nil, fmt.Errorf("%w: unknown change op %d", ErrExecutingQuery, change.Op)
}

func (r *itemRepository) applyCreate(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, change *PreparedChange) (*AppliedChange, *ChangeConflict, error) {
	if conflict, err := r.pathConflict(ctx, tx, vaultID, change.Path, change.ItemID); err != nil {
		return nil, nil, err
	} else if conflict != nil {
		return nil, conflict, nil
	}

	var createdAt, updatedAt time.Time
	err := tx.QueryRowContext(ctx, insertItem,
		change.ItemID, vaultID, change.Path, change.Name, change.TypeID,
		change.PayloadEnc, change.Checksum, int32(models.StatusActive),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, &ChangeConflict{ItemID: change.ItemID, Reason: models.ConflictPath, ServerUpdatedAt: time.Now().UTC()}, nil
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	seq, err := r.appendJournal(ctx, tx, vaultID, change.ItemID, models.ChangeCreate, 1)
	if err != nil {
		return nil, nil, err
	}
	return &AppliedChange{ItemID: change.ItemID, Seq: seq, Version: 1, UpdatedAt: updatedAt}, nil, nil
}

func (r *itemRepository) applyUpdate(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, current *models.Item, change *PreparedChange, actor models.ActorSnapshot, historyCap int) (*AppliedChange, *ChangeConflict, error) {
	path := change.Path
	name := change.Name
	typeID := change.TypeID
	payloadEnc := change.PayloadEnc
	checksum := change.Checksum
	if path == "" {
		path, name = current.Path, current.Name
	}
	if typeID == "" {
		typeID = current.TypeID
	}
	if payloadEnc == nil {
		payloadEnc, checksum = current.PayloadEnc, current.Checksum
	}

	if path != current.Path {
		if conflict, err := r.pathConflict(ctx, tx, vaultID, path, change.ItemID); err != nil {
			return nil, nil, err
		} else if conflict != nil {
			return nil, conflict, nil
		}
	}

	// A rename that touches neither payload nor type is metadata-only and
	// must not write history.
	contentChanged := checksum != current.Checksum || typeID != current.TypeID
	if contentChanged {
		if err := r.writeHistory(ctx, tx, current, models.ChangeUpdate, actor, historyCap); err != nil {
			return nil, nil, err
		}
	}

	var version int64
	var updatedAt time.Time
	err := tx.QueryRowContext(ctx, updateItemRow,
		change.ItemID, path, name, typeID, payloadEnc, checksum,
	).Scan(&version, &updatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, &ChangeConflict{ItemID: change.ItemID, Reason: models.ConflictPath, ServerUpdatedAt: current.UpdatedAt}, nil
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	seq, err := r.appendJournal(ctx, tx, vaultID, change.ItemID, models.ChangeUpdate, version)
	if err != nil {
		return nil, nil, err
	}
	return &AppliedChange{ItemID: change.ItemID, Seq: seq, Version: version, UpdatedAt: updatedAt}, nil, nil
}

func (r *itemRepository) applyDelete(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, current *models.Item) (*AppliedChange, *ChangeConflict, error) {
	if current.DeletedAt != nil {
		// Already a tombstone; deleting again is a no-op conflict so the
		// client drops its pending change.
		return nil, &ChangeConflict{
			ItemID:          current.ID,
			Reason:          models.ConflictBaseSeqMismatch,
			ServerUpdatedAt: current.UpdatedAt,
		}, nil
	}

	var version int64
	var updatedAt time.Time
	err := tx.QueryRowContext(ctx, softDeleteItem, current.ID, int32(models.StatusTombstone)).Scan(&version, &updatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	seq, err := r.appendJournal(ctx, tx, vaultID, current.ID, models.ChangeDelete, version)
	if err != nil {
		return nil, nil, err
	}
	deletedAt := updatedAt
	return &AppliedChange{ItemID: current.ID, Seq: seq, Version: version, UpdatedAt: updatedAt, DeletedAt: &deletedAt}, nil, nil
}

func (r *itemRepository) applyRestore(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, current *models.Item) (*AppliedChange, *ChangeConflict, error) {
	if current.DeletedAt == nil {
		return nil, &ChangeConflict{
			ItemID:          current.ID,
			Reason:          models.ConflictBaseSeqMismatch,
			ServerUpdatedAt: current.UpdatedAt,
		}, nil
	}

	if conflict, err := r.pathConflict(ctx, tx, vaultID, current.Path, current.ID); err != nil {
		return nil, nil, err
	} else if conflict != nil {
		return nil, conflict, nil
	}

	var version int64
	var updatedAt time.Time
	err := tx.QueryRowContext(ctx, restoreItemRow, current.ID, int32(models.StatusActive)).Scan(&version, &updatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	seq, err := r.appendJournal(ctx, tx, vaultID, current.ID, models.ChangeRestore, version)
	if err != nil {
		return nil, nil, err
	}
	return &AppliedChange{ItemID: current.ID, Seq: seq, Version: version, UpdatedAt: updatedAt}, nil, nil
}

// RestoreVersion applies a stored history payload as a new live version of
// the item, journalled as an update and audited as a restore.
func (r *itemRepository) RestoreVersion(ctx context.Context, item *models.Item, hist *models.ItemHistory, actor models.ActorSnapshot, historyCap int) (*AppliedChange, error) {
	var applied *AppliedChange
	err := r.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, lockVaultJournal, item.VaultID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		if err := r.writeHistory(ctx, tx, item, models.ChangeRestore, actor, historyCap); err != nil {
			return err
		}

		var version int64
		var updatedAt time.Time
		err := tx.QueryRowContext(ctx, updateItemRow,
			item.ID, item.Path, item.Name, item.TypeID, hist.PayloadEnc, hist.Checksum,
		).Scan(&version, &updatedAt)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		seq, err := r.appendJournal(ctx, tx, item.VaultID, item.ID, models.ChangeUpdate, version)
		if err != nil {
			return err
		}
		applied = &AppliedChange{ItemID: item.ID, Seq: seq, Version: version, UpdatedAt: updatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// ListChangesAfter returns journal rows with seq > afterSeq in seq order,
// joined with current item state, capped at limit.
func (r *itemRepository) ListChangesAfter(ctx context.Context, vaultID uuid.UUID, afterSeq, limit int64) ([]JournalRow, error) {
	log := logger.FromContext(ctx)

	rows, err := r.QueryContext(ctx, journalAfterCursor, vaultID, afterSeq, limit)
	if err != nil {
		log.Err(err).
			Str("func", "itemRepository.ListChangesAfter").
			Str("vault_id", vaultID.String()).
			Int64("after_seq", afterSeq).
			Msg("failed to read journal")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	journal := make([]JournalRow, 0, limit)
	for rows.Next() {
		var (
			row       JournalRow
			op        int32
			deletedAt sql.NullTime
		)
		err := rows.Scan(
			&row.Seq, &op, &row.ItemID, &row.Version, &row.CreatedAt,
			&row.Path, &row.Name, &row.TypeID, &row.PayloadEnc, &row.Checksum,
			&row.UpdatedAt, &deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if row.Op, err = models.ParseChangeType(op); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			row.DeletedAt = &t
		}
		journal = append(journal, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return journal, nil
}

// MaxSeq returns the current journal head of a vault (0 for an empty
// journal).
func (r *itemRepository) MaxSeq(ctx context.Context, vaultID uuid.UUID) (int64, error) {
	var seq int64
	if err := r.QueryRowContext(ctx, maxVaultSeq, vaultID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return seq, nil
}

// ItemMaxSeq returns the latest journal seq recorded for one item (0 when
// the item never hit the journal).
func (r *itemRepository) ItemMaxSeq(ctx context.Context, vaultID, itemID uuid.UUID) (int64, error) {
	var seq int64
	if err := r.QueryRowContext(ctx, maxItemSeq, vaultID, itemID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return seq, nil
}

// ListTrash returns the tombstoned items of a vault, newest first.
func (r *itemRepository) ListTrash(ctx context.Context, vaultID uuid.UUID) ([]models.Item, error) {
	query, args, err := buildListTrashQuery(vaultID)
	if err != nil {
		return nil, err
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	items := make([]models.Item, 0, 16)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return items, nil
}

// PurgeItem hard-deletes one item row; history follows via ON DELETE
// CASCADE. No journal row is written: clients learn of purges through the
// tombstone they already observed.
func (r *itemRepository) PurgeItem(ctx context.Context, id uuid.UUID) error {
	res, err := r.ExecContext(ctx, purgeItemRow, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// PurgeTrash hard-deletes the vault's tombstoned items, optionally only
// those older than the given number of days.
func (r *itemRepository) PurgeTrash(ctx context.Context, vaultID uuid.UUID, olderThanDays int) (int64, error) {
	query, args, err := buildPurgeTrashQuery(vaultID, olderThanDays)
	if err != nil {
		return 0, err
	}

	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return res.RowsAffected()
}

// pathConflict reports a live item other than excludeID already sitting at
// (vaultID, path).
func (r *itemRepository) pathConflict(ctx context.Context, tx *sql.Tx, vaultID uuid.UUID, path string, excludeID uuid.UUID) (*ChangeConflict, error) {
	var existingID uuid.UUID
	err := tx.QueryRowContext(ctx, findLivePathConflict, vaultID, path, excludeID).Scan(&existingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	seq := int64(0)
	_ = tx.QueryRowContext(ctx, maxItemSeq, vaultID, existingID).Scan(&seq)
	return &ChangeConflict{
		ItemID:          excludeID,
		Reason:          models.ConflictPath,
		ServerSeq:       seq,
		ServerUpdatedAt: time.Now().UTC(),
	}, nil
}

// appendJournal allocates the next per-vault seq and appends one journal
// row. Callers hold the vault advisory lock; the UNIQUE(vault_id, seq)
// index backstops it.
func (r *itemRepository) appendJournal(ctx context.Context, tx *sql.Tx, vaultID, itemID uuid.UUID, op models.ChangeType, version int64) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, nextVaultSeq, vaultID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var createdAt time.Time
	if err := tx.QueryRowContext(ctx, appendChange, seq, vaultID, itemID, int32(op), version).Scan(&createdAt); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return seq, nil
}

// writeHistory snapshots the pre-image of an item and trims the per-item
// history back to the cap.
func (r *itemRepository) writeHistory(ctx context.Context, tx *sql.Tx, preImage *models.Item, changeType models.ChangeType, actor models.ActorSnapshot, historyCap int) error {
	_, err := tx.ExecContext(ctx, insertHistory,
		uuid.New(), preImage.ID, preImage.PayloadEnc, preImage.Checksum, preImage.Version,
		int32(changeType), actor.Email, nullIfEmpty(actor.Name), nullIfEmpty(actor.DeviceName),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if _, err := tx.ExecContext(ctx, pruneHistoryCap, preImage.ID, historyCap); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanItemMaybe behaves like scanItem but maps a missing row to (nil, nil).
func scanItemMaybe(row rowScanner) (*models.Item, error) {
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item          models.Item
		syncStatus    int32
		deletedAt     sql.NullTime
		rotState      sql.NullString
		rotStartedAt  sql.NullTime
		rotStartedBy  uuid.NullUUID
		rotExpiresAt  sql.NullTime
		rotRecover    sql.NullTime
		rotAbortedFor sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.VaultID, &item.Path, &item.Name, &item.TypeID,
		&item.PayloadEnc, &item.Checksum, &item.Version, &item.RowVersion,
		&syncStatus, &deletedAt, &item.CreatedAt, &item.UpdatedAt,
		&rotState, &item.Rotation.CandidateEnc, &rotStartedAt, &rotStartedBy,
		&rotExpiresAt, &rotRecover, &rotAbortedFor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if item.SyncStatus, err = models.ParseSyncStatus(syncStatus); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		item.DeletedAt = &t
	}
	if rotState.Valid {
		if item.Rotation.State, err = models.ParseRotationState(rotState.String); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
	}
	if rotStartedAt.Valid {
		t := rotStartedAt.Time
		item.Rotation.StartedAt = &t
	}
	if rotStartedBy.Valid {
		id := rotStartedBy.UUID
		item.Rotation.StartedBy = &id
	}
	if rotExpiresAt.Valid {
		t := rotExpiresAt.Time
		item.Rotation.ExpiresAt = &t
	}
	if rotRecover.Valid {
		t := rotRecover.Time
		item.Rotation.RecoverUntil = &t
	}
	item.Rotation.AbortedReason = rotAbortedFor.String
	return &item, nil
}
