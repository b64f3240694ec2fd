// SPDX-License-Identifier: Apache-2.0

package utils

import "github.com/google/uuid"

// NewUUID returns a time-ordered UUID (v7) when available, falling back to
// a random UUID so callers always receive a valid identifier.
func NewUUID() uuid.UUID {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v7
}

// StorageIDForURL derives a stable storage id from a server URL so agent
// restarts resume the same cursors.
func StorageIDForURL(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}
