// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Key-hierarchy misuse errors, distinct from envelope parse and AEAD
// failures so the service layer can map them to their own kinds.
var (
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// Domain-separation prefixes. Each use of the envelope gets its own AAD
// namespace so a blob sealed for one purpose can never be replayed into
// another.
const (
	aadVaultKey          = "zann:vault_key:v1"
	aadPayload           = "zann:payload:v1"
	aadRotationCandidate = "zann:rotation_candidate:v1"
)

// VaultKeyAAD binds a wrapped vault key to its vault.
func VaultKeyAAD(vaultID uuid.UUID) []byte {
	aad := make([]byte, 0, len(aadVaultKey)+16)
	aad = append(aad, aadVaultKey...)
	return append(aad, vaultID[:]...)
}

// PayloadAAD binds an item payload to its vault and item.
func PayloadAAD(vaultID, itemID uuid.UUID) []byte {
	aad := make([]byte, 0, len(aadPayload)+32)
	aad = append(aad, aadPayload...)
	aad = append(aad, vaultID[:]...)
	return append(aad, itemID[:]...)
}

// RotationCandidateAAD binds a rotation candidate to its vault and item.
func RotationCandidateAAD(vaultID, itemID uuid.UUID) []byte {
	aad := make([]byte, 0, len(aadRotationCandidate)+32)
	aad = append(aad, aadRotationCandidate...)
	aad = append(aad, vaultID[:]...)
	return append(aad, itemID[:]...)
}

// EncryptVaultKey wraps vaultKey under masterKey and returns the envelope
// bytes stored in vault_key_enc.
func EncryptVaultKey(masterKey *SecretKey, vaultID uuid.UUID, vaultKey *SecretKey) ([]byte, error) {
	blob, err := EncryptBlob(masterKey, vaultKey.Bytes(), VaultKeyAAD(vaultID))
	if err != nil {
		return nil, err
	}
	return blob.Bytes(), nil
}

// DecryptVaultKey unwraps vault_key_enc. Anything other than exactly 32
// decrypted bytes is ErrInvalidKeyLength.
func DecryptVaultKey(masterKey *SecretKey, vaultID uuid.UUID, vaultKeyEnc []byte) (*SecretKey, error) {
	blob, err := ParseBlob(vaultKeyEnc)
	if err != nil {
		return nil, err
	}
	keyBytes, err := DecryptBlob(masterKey, blob, VaultKeyAAD(vaultID))
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range keyBytes {
			keyBytes[i] = 0
		}
	}()
	if len(keyBytes) != 32 {
		return nil, ErrInvalidKeyLength
	}
	return KeyFromBytes(keyBytes)
}

// EncryptPayload seals item payload bytes under the vault key.
func EncryptPayload(vaultKey *SecretKey, vaultID, itemID uuid.UUID, payload []byte) ([]byte, error) {
	blob, err := EncryptBlob(vaultKey, payload, PayloadAAD(vaultID, itemID))
	if err != nil {
		return nil, err
	}
	return blob.Bytes(), nil
}

// DecryptPayload opens payload_enc for the given vault and item.
func DecryptPayload(vaultKey *SecretKey, vaultID, itemID uuid.UUID, payloadEnc []byte) ([]byte, error) {
	blob, err := ParseBlob(payloadEnc)
	if err != nil {
		return nil, err
	}
	return DecryptBlob(vaultKey, blob, PayloadAAD(vaultID, itemID))
}

// EncryptRotationCandidate seals a candidate secret under the vault key
// with the rotation AAD so it cannot be confused with a live payload.
func EncryptRotationCandidate(vaultKey *SecretKey, vaultID, itemID uuid.UUID, candidate []byte) ([]byte, error) {
	blob, err := EncryptBlob(vaultKey, candidate, RotationCandidateAAD(vaultID, itemID))
	if err != nil {
		return nil, err
	}
	return blob.Bytes(), nil
}

// DecryptRotationCandidate opens a stored rotation candidate.
func DecryptRotationCandidate(vaultKey *SecretKey, vaultID, itemID uuid.UUID, candidateEnc []byte) ([]byte, error) {
	blob, err := ParseBlob(candidateEnc)
	if err != nil {
		return nil, err
	}
	return DecryptBlob(vaultKey, blob, RotationCandidateAAD(vaultID, itemID))
}

// PayloadChecksum is the canonical identity of a ciphertext: lowercase
// BLAKE3 hex over the envelope bytes.
func PayloadChecksum(payloadEnc []byte) string {
	sum := blake3.Sum256(payloadEnc)
	return hex.EncodeToString(sum[:])
}

// CacheKeyFingerprint identifies which vault key sealed a cached row: the
// first 12 hex characters of BLAKE3 over the key material. It changes on
// every vault-key rotation, which is exactly what lets the cache refuse
// stale ciphertext.
func CacheKeyFingerprint(vaultKey *SecretKey) string {
	sum := blake3.Sum256(vaultKey.Bytes())
	return hex.EncodeToString(sum[:])[:12]
}

// VerifyChecksum compares the stored checksum with a recomputation over the
// envelope bytes.
func VerifyChecksum(payloadEnc []byte, checksum string) error {
	if PayloadChecksum(payloadEnc) != checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidPayload)
	}
	return nil
}
