// SPDX-License-Identifier: Apache-2.0

package service

import "errors"

// Sentinel errors of the service layer. The HTTP boundary maps each to a
// stable wire error kind; see the errors mapper in the handler package.
var (
	// Item placement rules.
	ErrPathRequired = errors.New("path required")
	ErrPathConflict = errors.New("path conflict")

	// Lookup.
	ErrItemNotFound  = errors.New("item not found")
	ErrVaultNotFound = errors.New("vault not found")
	ErrVaultDeleted  = errors.New("vault deleted")
	ErrSlugTaken     = errors.New("vault slug already exists")

	// Encryption-type guards.
	ErrPayloadEncRequired  = errors.New("payload_enc required for client-encrypted vault")
	ErrPlaintextRequired   = errors.New("plaintext payload required for server-encrypted vault")
	ErrPlaintextNotAllowed = errors.New("plaintext payload not allowed for client-encrypted vault")

	// Crypto and integrity.
	ErrPayloadCorrupted = errors.New("payload corrupted")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrServerKeyMissing = errors.New("server master key not configured")

	// Optimistic concurrency outside a push batch.
	ErrBaseSeqMismatch = errors.New("base seq mismatch")

	// Sync.
	ErrInvalidCursor = errors.New("invalid cursor")

	// Authorization.
	ErrAccessDenied      = errors.New("access denied")
	ErrHumanRequired     = errors.New("write operations require a human identity")
	ErrScopeNotMatched   = errors.New("token scopes do not cover this vault")
	ErrIdentityMissing   = errors.New("no caller identity in context")

	// Rotation engine.
	ErrRotationInProgress   = errors.New("rotation already in progress")
	ErrRotationNotStarted   = errors.New("rotation not started")
	ErrRotationExpired      = errors.New("rotation lock expired")
	ErrInvalidPolicy        = errors.New("unknown rotation policy")
	ErrPasswordFieldMissing = errors.New("item has no password field")
	ErrCandidateInvalid     = errors.New("rotation candidate invalid")

	// History.
	ErrVersionNotFound = errors.New("item version not found")

	// Client cache.
	ErrVaultKeyDecryptFailed = errors.New("vault key decrypt failed")
	ErrFingerprintMismatch   = errors.New("server fingerprint mismatch")
)
