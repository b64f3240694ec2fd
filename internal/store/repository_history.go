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

// HistoryRepository reads and prunes the per-item audit trail. History rows
// are written transactionally by [ItemRepository]; this repository only
// serves reads and the background TTL pass.
type HistoryRepository interface {
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.ItemHistory, error)
	GetVersion(ctx context.Context, itemID uuid.UUID, version int64) (*models.ItemHistory, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type historyRepository struct {
	*DB
	logger *logger.Logger
}

// NewHistoryRepository constructs a [HistoryRepository] on the given
// connection.
func NewHistoryRepository(db *DB, log *logger.Logger) HistoryRepository {
	return &historyRepository{DB: db, logger: log}
}

// ListByItem returns up to limit history entries, newest version first.
func (r *historyRepository) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.ItemHistory, error) {
	log := logger.FromContext(ctx)

	rows, err := r.QueryContext(ctx, historyByItem, itemID, limit)
	if err != nil {
		log.Err(err).
			Str("func", "historyRepository.ListByItem").
			Str("item_id", itemID.String()).
			Msg("failed to list item history")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	entries := make([]models.ItemHistory, 0, limit)
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return entries, nil
}

// GetVersion returns the history entry holding the given item version.
func (r *historyRepository) GetVersion(ctx context.Context, itemID uuid.UUID, version int64) (*models.ItemHistory, error) {
	entry, err := scanHistory(r.QueryRowContext(ctx, historyVersion, itemID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHistoryNotFound
	}
	return entry, err
}

// PruneOlderThan deletes history rows created before the cutoff across all
// items. Run by the background TTL pruner.
func (r *historyRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.ExecContext(ctx, pruneHistoryTTL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return res.RowsAffected()
}

func scanHistory(row rowScanner) (*models.ItemHistory, error) {
	var (
		entry      models.ItemHistory
		changeType int32
		name       sql.NullString
		deviceName sql.NullString
	)
	err := row.Scan(
		&entry.ID, &entry.ItemID, &entry.PayloadEnc, &entry.Checksum, &entry.Version,
		&changeType, &entry.ChangedByEmail, &name, &deviceName, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if entry.ChangeType, err = models.ParseChangeType(changeType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	entry.ChangedByName = name.String
	entry.ChangedByDeviceName = deviceName.String
	return &entry, nil
}
