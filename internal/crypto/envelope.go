// SPDX-License-Identifier: Apache-2.0

// Package crypto implements the envelope encryption used for every secret
// at rest and on the wire.
//
// # Envelope format
//
// An encrypted blob is a single binary string (little-endian, u32 lengths):
//
//	magic[3]="ZAN" | version=1 | kek_id[4] | algo_dek[1] | algo_kek[1]
//	| enc_dek_len[4] | nonce_len[4] | enc_dek[..] | nonce[..] | ciphertext[..]
//
// A fresh data-encryption key (DEK) is generated per call and wrapped under
// the caller's key-encryption key (KEK) with its own XChaCha20-Poly1305
// nonce (enc_dek = nonce ‖ ciphertext). The plaintext is then sealed under
// the DEK with the envelope header concatenated in front of the caller's
// associated data, binding the metadata to the ciphertext.
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	blobVersion       = 1
	algXChaCha20Poly  = 1
	maxBlobSectionLen = 1024

	headerLen = 3 + 1 + 4 + 1 + 1 + 4 + 4
)

var blobMagic = [3]byte{'Z', 'A', 'N'}

// Envelope parse and AEAD failures. AEAD errors never reveal whether the
// key or the data was at fault.
var (
	ErrInvalidBlob          = errors.New("invalid encrypted blob")
	ErrUnsupportedVersion   = errors.New("unsupported blob version")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrEncryptionFailed     = errors.New("encryption failed")
	ErrDecryptionFailed     = errors.New("decryption failed")
)

// SecretKey is a 32-byte symmetric key. It refuses to print itself and can
// be wiped explicitly once a caller is done with it; holders are expected to
// defer Zero at acquisition.
type SecretKey struct {
	bytes [32]byte
}

// GenerateKey returns a fresh random key from the OS CSPRNG.
func GenerateKey() (*SecretKey, error) {
	var key SecretKey
	if _, err := io.ReadFull(rand.Reader, key.bytes[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return &key, nil
}

// KeyFromBytes copies material into a SecretKey. The input must be exactly
// 32 bytes; the caller keeps ownership of (and should wipe) the slice.
func KeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrInvalidBlob, len(b))
	}
	var key SecretKey
	copy(key.bytes[:], b)
	return &key, nil
}

// Bytes exposes the raw key to the AEAD layer. Never log or persist the
// returned slice.
func (k *SecretKey) Bytes() []byte {
	return k.bytes[:]
}

// Zero wipes the key material in place.
func (k *SecretKey) Zero() {
	for i := range k.bytes {
		k.bytes[i] = 0
	}
}

// String implements fmt.Stringer with a redacted placeholder.
func (k *SecretKey) String() string { return "SecretKey(REDACTED)" }

// GoString keeps %#v output redacted as well.
func (k *SecretKey) GoString() string { return "SecretKey(REDACTED)" }

// EncryptedBlob is the parsed form of an envelope.
type EncryptedBlob struct {
	KekID      uint32
	AlgoDEK    byte
	AlgoKEK    byte
	EncDEK     []byte
	Nonce      []byte
	Ciphertext []byte
}

// Bytes serialises the blob into the canonical v1 byte layout.
func (b *EncryptedBlob) Bytes() []byte {
	out := make([]byte, 0, headerLen+len(b.EncDEK)+len(b.Nonce)+len(b.Ciphertext))
	out = append(out, blobMagic[:]...)
	out = append(out, blobVersion)
	out = binary.LittleEndian.AppendUint32(out, b.KekID)
	out = append(out, b.AlgoDEK, b.AlgoKEK)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.EncDEK)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.Nonce)))
	out = append(out, b.EncDEK...)
	out = append(out, b.Nonce...)
	out = append(out, b.Ciphertext...)
	return out
}

// ParseBlob decodes and bounds-checks a v1 envelope. Truncation and oversize
// sections fail ErrInvalidBlob; a foreign version fails ErrUnsupportedVersion
// so callers can distinguish corruption from a format bump.
func ParseBlob(data []byte) (*EncryptedBlob, error) {
	if len(data) < 4 {
		return nil, ErrInvalidBlob
	}
	if data[0] != blobMagic[0] || data[1] != blobMagic[1] || data[2] != blobMagic[2] {
		return nil, ErrInvalidBlob
	}
	if data[3] != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[3])
	}
	if len(data) < headerLen {
		return nil, ErrInvalidBlob
	}
	kekID := binary.LittleEndian.Uint32(data[4:8])
	algoDEK := data[8]
	algoKEK := data[9]
	encDEKLen := int(binary.LittleEndian.Uint32(data[10:14]))
	nonceLen := int(binary.LittleEndian.Uint32(data[14:18]))
	if encDEKLen > maxBlobSectionLen || nonceLen > maxBlobSectionLen {
		return nil, ErrInvalidBlob
	}
	if len(data) < headerLen+encDEKLen+nonceLen {
		return nil, ErrInvalidBlob
	}
	offset := headerLen
	encDEK := append([]byte(nil), data[offset:offset+encDEKLen]...)
	offset += encDEKLen
	nonce := append([]byte(nil), data[offset:offset+nonceLen]...)
	offset += nonceLen
	ciphertext := append([]byte(nil), data[offset:]...)
	return &EncryptedBlob{
		KekID:      kekID,
		AlgoDEK:    algoDEK,
		AlgoKEK:    algoKEK,
		EncDEK:     encDEK,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// EncryptBlob seals plaintext under a fresh DEK wrapped by key, binding aad
// (prefixed with the envelope header) into the AEAD tag.
func EncryptBlob(key *SecretKey, plaintext, aad []byte) (*EncryptedBlob, error) {
	dek, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	defer dek.Zero()

	encDEK, err := wrapDEK(key, dek)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(dek.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	header := headerBytes(0, algXChaCha20Poly, algXChaCha20Poly)
	ciphertext := aead.Seal(nil, nonce, plaintext, payloadAAD(header, aad))
	return &EncryptedBlob{
		KekID:      0,
		AlgoDEK:    algXChaCha20Poly,
		AlgoKEK:    algXChaCha20Poly,
		EncDEK:     encDEK,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// DecryptBlob reverses EncryptBlob. Algorithm bytes are checked before any
// key material is touched; the header of the parsed blob (not a
// recomputation) feeds the AAD so tampering with any header byte fails.
func DecryptBlob(key *SecretKey, blob *EncryptedBlob, aad []byte) ([]byte, error) {
	if blob.AlgoDEK != algXChaCha20Poly || blob.AlgoKEK != algXChaCha20Poly {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, blob.AlgoDEK)
	}
	dek, err := unwrapDEK(key, blob.EncDEK)
	if err != nil {
		return nil, err
	}
	defer dek.Zero()

	if len(blob.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidBlob
	}
	aead, err := chacha20poly1305.NewX(dek.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	header := headerBytes(blob.KekID, blob.AlgoDEK, blob.AlgoKEK)
	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, payloadAAD(header, aad))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func headerBytes(kekID uint32, algoDEK, algoKEK byte) []byte {
	out := make([]byte, 0, 6)
	out = binary.LittleEndian.AppendUint32(out, kekID)
	return append(out, algoDEK, algoKEK)
}

func payloadAAD(header, aad []byte) []byte {
	out := make([]byte, 0, len(header)+len(aad))
	out = append(out, header...)
	return append(out, aad...)
}

// wrapDEK seals the DEK under the KEK: enc_dek = nonce ‖ ciphertext, no AAD.
func wrapDEK(kek, dek *SecretKey) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(kek.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return aead.Seal(nonce, nonce, dek.Bytes(), nil), nil
}

func unwrapDEK(kek *SecretKey, encDEK []byte) (*SecretKey, error) {
	if len(encDEK) < chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidBlob
	}
	nonce, ciphertext := encDEK[:chacha20poly1305.NonceSizeX], encDEK[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(kek.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	dekBytes, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(dekBytes) != 32 {
		return nil, ErrInvalidBlob
	}
	dek, err := KeyFromBytes(dekBytes)
	for i := range dekBytes {
		dekBytes[i] = 0
	}
	return dek, err
}
