// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultKeyWrapRoundTrip(t *testing.T) {
	master, err := GenerateKey()
	require.NoError(t, err)
	vaultKey, err := GenerateKey()
	require.NoError(t, err)
	vaultID := uuid.New()

	enc, err := EncryptVaultKey(master, vaultID, vaultKey)
	require.NoError(t, err)

	got, err := DecryptVaultKey(master, vaultID, enc)
	require.NoError(t, err)
	assert.Equal(t, vaultKey.Bytes(), got.Bytes())
}

func TestVaultKeyWrongVaultIDFails(t *testing.T) {
	master, err := GenerateKey()
	require.NoError(t, err)
	vaultKey, err := GenerateKey()
	require.NoError(t, err)

	enc, err := EncryptVaultKey(master, uuid.New(), vaultKey)
	require.NoError(t, err)

	_, err = DecryptVaultKey(master, uuid.New(), enc)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestPayloadRoundTripAndCrossItemIsolation(t *testing.T) {
	vaultKey, err := GenerateKey()
	require.NoError(t, err)
	vaultID := uuid.New()
	itemID := uuid.New()

	enc, err := EncryptPayload(vaultKey, vaultID, itemID, []byte(`{"v":1}`))
	require.NoError(t, err)

	plain, err := DecryptPayload(vaultKey, vaultID, itemID, enc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(plain))

	// The same bytes under a different item id must not open.
	_, err = DecryptPayload(vaultKey, vaultID, uuid.New(), enc)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestRotationCandidateDomainSeparation(t *testing.T) {
	vaultKey, err := GenerateKey()
	require.NoError(t, err)
	vaultID := uuid.New()
	itemID := uuid.New()

	candidateEnc, err := EncryptRotationCandidate(vaultKey, vaultID, itemID, []byte("next-password"))
	require.NoError(t, err)

	// A candidate blob must not decrypt under the payload AAD.
	_, err = DecryptPayload(vaultKey, vaultID, itemID, candidateEnc)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	got, err := DecryptRotationCandidate(vaultKey, vaultID, itemID, candidateEnc)
	require.NoError(t, err)
	assert.Equal(t, []byte("next-password"), got)
}

func TestDecryptVaultKeyRejectsShortKey(t *testing.T) {
	master, err := GenerateKey()
	require.NoError(t, err)
	vaultID := uuid.New()

	// Wrap 16 bytes instead of a key; unwrap must refuse the length.
	blob, err := EncryptBlob(master, make([]byte, 16), VaultKeyAAD(vaultID))
	require.NoError(t, err)

	_, err = DecryptVaultKey(master, vaultID, blob.Bytes())
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestPayloadChecksum(t *testing.T) {
	sum := PayloadChecksum([]byte("payload"))
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, PayloadChecksum([]byte("payload")))
	assert.NotEqual(t, sum, PayloadChecksum([]byte("payloae")))
	assert.NoError(t, VerifyChecksum([]byte("payload"), sum))
	assert.ErrorIs(t, VerifyChecksum([]byte("other"), sum), ErrInvalidPayload)
}

func TestCacheKeyFingerprint(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	fp := CacheKeyFingerprint(key)
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, CacheKeyFingerprint(key))
	assert.NotEqual(t, fp, CacheKeyFingerprint(other))
}
