// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/models"
)

func clientVault() *models.Vault {
	return &models.Vault{
		ID:             uuid.New(),
		Slug:           "personal",
		Kind:           models.VaultKindPersonal,
		EncryptionType: models.EncryptionClient,
	}
}

func serverVault(t *testing.T, masterKey *crypto.SecretKey) *models.Vault {
	t.Helper()
	vault := &models.Vault{
		ID:             uuid.New(),
		Slug:           "shared",
		Kind:           models.VaultKindShared,
		EncryptionType: models.EncryptionServer,
	}
	vaultKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	vault.VaultKeyEnc, err = crypto.EncryptVaultKey(masterKey, vault.ID, vaultKey)
	require.NoError(t, err)
	return vault
}

func loginPayload(password string) json.RawMessage {
	return json.RawMessage(`{"v":1,"typeId":"login","fields":{"password":{"kind":"password","value":"` + password + `"}}}`)
}

func TestResolvePayloadClientVaultGuards(t *testing.T) {
	vault := clientVault()
	itemID := uuid.New()

	// Plaintext is never accepted on the client-encrypted path.
	_, _, err := resolvePayload(nil, vault, itemID, nil, loginPayload("x"), "", "login")
	assert.ErrorIs(t, err, ErrPlaintextNotAllowed)

	// The envelope is mandatory.
	_, _, err = resolvePayload(nil, vault, itemID, nil, nil, "", "login")
	assert.ErrorIs(t, err, ErrPayloadEncRequired)

	// Anything that is not the canonical envelope is rejected outright.
	_, _, err = resolvePayload(nil, vault, itemID, []byte("raw-bytes"), nil, "", "login")
	assert.ErrorIs(t, err, crypto.ErrInvalidBlob)

	// A well-formed envelope passes and the checksum is canonicalised.
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	blob, err := crypto.EncryptPayload(key, vault.ID, itemID, []byte("sealed"))
	require.NoError(t, err)

	stored, checksum, err := resolvePayload(nil, vault, itemID, blob, nil, "", "login")
	require.NoError(t, err)
	assert.Equal(t, blob, stored)
	assert.Equal(t, crypto.PayloadChecksum(blob), checksum)

	// A checksum that does not match the envelope bytes is corruption.
	_, _, err = resolvePayload(nil, vault, itemID, blob, nil, "deadbeef", "login")
	assert.ErrorIs(t, err, ErrPayloadCorrupted)
}

func TestResolvePayloadServerVaultGuards(t *testing.T) {
	masterKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	vault := serverVault(t, masterKey)
	itemID := uuid.New()

	// Ciphertext is refused where the server owns encryption.
	_, _, err = resolvePayload(masterKey, vault, itemID, []byte{1, 2, 3}, nil, "", "login")
	assert.ErrorIs(t, err, ErrPlaintextRequired)

	_, _, err = resolvePayload(masterKey, vault, itemID, nil, nil, "", "login")
	assert.ErrorIs(t, err, ErrPlaintextRequired)

	// Payload JSON is validated against the item type.
	_, _, err = resolvePayload(masterKey, vault, itemID, nil, json.RawMessage(`{"v":1,"typeId":"login","fields":{}}`), "", "login")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	// A valid payload is sealed under the vault key with the payload AAD.
	sealed, checksum, err := resolvePayload(masterKey, vault, itemID, nil, loginPayload("pw-a"), "", "login")
	require.NoError(t, err)
	assert.Equal(t, crypto.PayloadChecksum(sealed), checksum)

	item := &models.Item{ID: itemID, VaultID: vault.ID, PayloadEnc: sealed, Checksum: checksum}
	plaintext, err := decryptItemPayload(masterKey, vault, item)
	require.NoError(t, err)

	doc, err := models.ParseItemPayload(plaintext)
	require.NoError(t, err)
	assert.Equal(t, "pw-a", doc.Fields["password"].Value)
}

func TestResolvePayloadServerVaultWithoutMasterKey(t *testing.T) {
	vault := &models.Vault{
		ID:             uuid.New(),
		Kind:           models.VaultKindShared,
		EncryptionType: models.EncryptionServer,
	}
	_, _, err := resolvePayload(nil, vault, uuid.New(), nil, loginPayload("pw"), "", "login")
	assert.ErrorIs(t, err, ErrServerKeyMissing)
}

func TestDecryptItemPayloadDetectsCorruption(t *testing.T) {
	masterKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	vault := serverVault(t, masterKey)
	itemID := uuid.New()

	sealed, checksum, err := resolvePayload(masterKey, vault, itemID, nil, loginPayload("pw"), "", "login")
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff

	item := &models.Item{ID: itemID, VaultID: vault.ID, PayloadEnc: tampered, Checksum: checksum}
	_, err = decryptItemPayload(masterKey, vault, item)
	assert.ErrorIs(t, err, ErrPayloadCorrupted)
}
