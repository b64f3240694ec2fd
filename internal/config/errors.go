// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrNoDatabaseDSN means no database connection string was supplied by
	// any source.
	ErrNoDatabaseDSN = errors.New("config: database DSN is required")

	// ErrInvalidMasterKey means a configured key was not 32 hex-encoded
	// bytes.
	ErrInvalidMasterKey = errors.New("config: key must be 64 hex characters")

	// ErrNoServerURL means the client agent has no server to talk to.
	ErrNoServerURL = errors.New("config: server URL is required")
)
