// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnumsRejectUnknownValues(t *testing.T) {
	_, err := ParseVaultKind(0)
	assert.Error(t, err)
	_, err = ParseVaultKind(3)
	assert.Error(t, err)

	_, err = ParseSyncStatus(7)
	assert.Error(t, err)

	_, err = ParseChangeType(0)
	assert.Error(t, err)
	_, err = ParseChangeType(5)
	assert.Error(t, err)

	_, err = ParseRotationState("frozen")
	assert.Error(t, err)
}

func TestParseEnumsAcceptKnownValues(t *testing.T) {
	kind, err := ParseVaultKind(2)
	require.NoError(t, err)
	assert.Equal(t, VaultKindShared, kind)

	status, err := ParseSyncStatus(6)
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, status)

	state, err := ParseRotationState("stale")
	require.NoError(t, err)
	assert.Equal(t, RotationStale, state)

	state, err = ParseRotationState("")
	require.NoError(t, err)
	assert.Equal(t, RotationActive, state)
}

func TestChangeTypeJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ChangeRestore)
	require.NoError(t, err)
	assert.Equal(t, "4", string(data))

	var decoded ChangeType
	require.NoError(t, json.Unmarshal([]byte("2"), &decoded))
	assert.Equal(t, ChangeUpdate, decoded)

	// Unknown numeric values are a decode error, never coerced.
	assert.Error(t, json.Unmarshal([]byte("9"), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`"update"`), &decoded))
}

func TestRotationStateString(t *testing.T) {
	assert.Equal(t, "active", RotationActive.String())
	assert.Equal(t, "rotating", RotationRotating.String())
	assert.Equal(t, "stale", RotationStale.String())
}
