// SPDX-License-Identifier: Apache-2.0

// Package utils provides small helpers shared across the application:
// context keys, HTTP response writing, UUID generation, and service-token
// verification.
package utils

import (
	"context"

	"github.com/zann-sh/zann/models"
)

// contextKey is a private type for context keys, preventing collisions with
// string-based keys from other packages.
type contextKey string

func (c contextKey) String() string {
	return string(c)
}

// IdentityCtxKey stores the resolved caller identity in the request
// context. The identity middleware writes it; handlers and services read it
// via GetIdentityFromContext.
var IdentityCtxKey = contextKey("identity")

// WithIdentity returns a child context carrying the resolved identity.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityCtxKey, identity)
}

// GetIdentityFromContext retrieves the caller identity from the context.
// ok is false when no identity middleware ran, which downstream code treats
// as an authorization failure rather than a panic.
func GetIdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(IdentityCtxKey).(*models.Identity)
	return identity, ok && identity != nil
}
