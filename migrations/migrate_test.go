// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateNilDB(t *testing.T) {
	assert.Error(t, Migrate(nil))
}

func TestMigrateAppliesCacheSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))

	for _, table := range []string{"storages", "vaults", "items", "pending_changes", "sync_cursors", "item_history"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		assert.NoError(t, err, table)
	}

	// Running again is a no-op.
	assert.NoError(t, Migrate(db))
}
