// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// Token verification failures.
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAuthHeader  = errors.New("invalid authorization header")
	ErrTokenHashMismatch  = errors.New("token hash mismatch")
	ErrKDFGateUnavailable = errors.New("kdf gate unavailable")
)

// ServiceTokenClaims are the claims zann expects inside a service-account
// bearer token: the account id as subject plus the granted scopes.
type ServiceTokenClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// ParseBearerToken extracts the credential from a standard
// "Authorization: <scheme> <token>" header value.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(authorizationHeader))
	if len(parts) != 2 || parts[1] == "" {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// VerifyServiceToken validates an HMAC-SHA256 service-account token and
// returns the account id and scopes it carries.
func VerifyServiceToken(tokenString, signKey, issuer string) (uuid.UUID, []string, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &ServiceTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(signKey), nil
	}, opts...)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return accountID, claims.Scopes, nil
}

// KDFGate bounds concurrent Argon2 computations so token hashing cannot
// starve request handling of CPU. Sized once at startup.
type KDFGate struct {
	sem *semaphore.Weighted
}

// NewKDFGate builds a gate admitting at most n concurrent derivations.
func NewKDFGate(n int64) *KDFGate {
	if n < 1 {
		n = 1
	}
	return &KDFGate{sem: semaphore.NewWeighted(n)}
}

// HashToken derives the storage hash of an opaque token with Argon2id,
// waiting for a gate slot first. The salt is stored alongside the hash.
func (g *KDFGate) HashToken(ctx context.Context, token string, salt []byte) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %w", ErrKDFGateUnavailable, err)
	}
	defer g.sem.Release(1)

	sum := argon2.IDKey([]byte(token), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(sum), nil
}

// CompareTokenHash re-derives and compares in constant time.
func (g *KDFGate) CompareTokenHash(ctx context.Context, token string, salt []byte, wantHex string) error {
	got, err := g.HashToken(ctx, token, salt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(wantHex)) != 1 {
		return ErrTokenHashMismatch
	}
	return nil
}
