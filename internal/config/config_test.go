// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.Storage.DB.DSN = "postgres://localhost/zann"

	require.NoError(t, cfg.validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.EqualValues(t, DefaultMaxBodyBytes, cfg.App.MaxBodyBytes)
	assert.Equal(t, DefaultRotationLockTTL, cfg.Rotation.LockTTL)
	assert.Equal(t, DefaultStaleRetention, cfg.Rotation.StaleRetention)
	assert.Equal(t, DefaultHistoryMaxVersions, cfg.History.MaxVersions)
	assert.Equal(t, DefaultHistoryRetentionDays, cfg.History.RetentionDays)
	assert.Equal(t, DefaultHistoryPruneInterval, cfg.Workers.HistoryPruneInterval)
}

func TestValidateRequiresDSN(t *testing.T) {
	cfg := &StructuredConfig{}
	assert.ErrorIs(t, cfg.validate(), ErrNoDatabaseDSN)
}

func TestMasterKeyDecoding(t *testing.T) {
	app := App{}
	key, err := app.MasterKey()
	require.NoError(t, err)
	assert.Nil(t, key)

	app.MasterKeyHex = hex.EncodeToString(make([]byte, 32))
	key, err = app.MasterKey()
	require.NoError(t, err)
	require.NotNil(t, key)

	app.MasterKeyHex = "zz"
	_, err = app.MasterKey()
	assert.ErrorIs(t, err, ErrInvalidMasterKey)

	app.MasterKeyHex = "abcd" // valid hex, wrong length
	_, err = app.MasterKey()
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

func TestParseJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"Storage": {"DB": {"DSN": "postgres://json/zann"}},
		"Rotation": {"LockTTL": 600000000000}
	}`), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://json/zann", cfg.Storage.DB.DSN)
	assert.Equal(t, 10*time.Minute, cfg.Rotation.LockTTL)

	_, err = parseJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
