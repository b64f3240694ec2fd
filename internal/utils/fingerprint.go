// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"encoding/hex"

	"lukechampine.com/blake3"

	"github.com/zann-sh/zann/internal/crypto"
)

// ServerFingerprint derives the public fingerprint of a server identity
// key: hex BLAKE3 over a fixed domain prefix and the key material. Clients
// pin this string per storage and refuse a server that stops matching.
func ServerFingerprint(identityKey *crypto.SecretKey) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte("zann:server_fingerprint:v1"))
	_, _ = h.Write(identityKey.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}
