// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"time"

	"github.com/zann-sh/zann/internal/crypto"
)

// StructuredConfig is the top-level configuration container for the zann
// server. It aggregates all sub-configurations and is populated by merging
// environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings: the server master key, server
	// identity, token verification parameters, and request limits.
	App App `envPrefix:"APP_"`

	// Storage holds the relational database settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds network address and timeout settings for HTTP.
	Server Server `envPrefix:"SERVER_"`

	// Rotation controls the credential-rotation lock windows.
	Rotation Rotation `envPrefix:"ROTATION_"`

	// History controls item-history retention.
	History History `envPrefix:"HISTORY_"`

	// Workers holds background-task intervals.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file,
	// merged on top of env and flag values when non-empty.
	// Env: CONFIG, flag: -c / -config.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration.
type App struct {
	// ServerName is the human-readable identity reported on /v1/meta.
	// Env: APP_SERVER_NAME
	ServerName string `env:"SERVER_NAME"`

	// MasterKeyHex is the 32-byte server master key, hex encoded. It wraps
	// every server-vault key. Must be kept confidential; without it shared
	// server vaults and rotation are unavailable.
	// Env: APP_MASTER_KEY
	MasterKeyHex string `env:"MASTER_KEY"`

	// IdentityKeyHex is the 32-byte server identity key, hex encoded. The
	// server fingerprint that clients pin is derived from it.
	// Env: APP_IDENTITY_KEY
	IdentityKeyHex string `env:"IDENTITY_KEY"`

	// TokenSignKey verifies service-account bearer tokens.
	// Env: APP_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenIssuer is the expected "iss" claim of service-account tokens.
	// Env: APP_TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER"`

	// MaxBodyBytes caps request bodies; beyond it the server answers
	// payload_too_large. Zero means the default of 4 MiB.
	// Env: APP_MAX_BODY_BYTES
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES"`

	// KDFConcurrency bounds the number of in-flight Argon2 computations
	// (token hashing). Zero means the default of 2.
	// Env: APP_KDF_CONCURRENCY
	KDFConcurrency int64 `env:"KDF_CONCURRENCY"`

	// Version is the semantic version of the running binary.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// ServiceToken configures the static opaque service token, an
	// alternative to JWT bearer tokens for single-credential deployments.
	ServiceToken ServiceToken `envPrefix:"SERVICE_TOKEN_"`
}

// ServiceToken describes one opaque bearer credential: the server stores
// only the Argon2id hash, recomputed through the KDF gate on every use.
type ServiceToken struct {
	// AccountID is the service-account id the token authenticates as.
	// Env: APP_SERVICE_TOKEN_ACCOUNT_ID
	AccountID string `env:"ACCOUNT_ID"`

	// SaltHex is the Argon2id salt, hex encoded.
	// Env: APP_SERVICE_TOKEN_SALT
	SaltHex string `env:"SALT"`

	// HashHex is the Argon2id hash of the token value, hex encoded.
	// Env: APP_SERVICE_TOKEN_HASH
	HashHex string `env:"HASH"`

	// Scopes are the grants attached to the token.
	// Env: APP_SERVICE_TOKEN_SCOPES (comma separated)
	Scopes []string `env:"SCOPES"`
}

// Configured reports whether an opaque service token is set up.
func (s ServiceToken) Configured() bool {
	return s.AccountID != "" && s.SaltHex != "" && s.HashHex != ""
}

// Storage groups persistence settings.
type Storage struct {
	DB DB `envPrefix:"DB_"`
}

// DB holds relational database connection settings.
type DB struct {
	// DSN is the PostgreSQL connection string.
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`

	// MaxOpenConns sizes the connection pool. Zero means the default of 8.
	// Env: STORAGE_DB_MAX_OPEN_CONNS
	MaxOpenConns int `env:"MAX_OPEN_CONNS"`
}

// Server holds inbound transport settings.
type Server struct {
	// HTTPAddress is the listen address in "host:port" form.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single inbound request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Rotation holds the credential-rotation windows of the state machine.
type Rotation struct {
	// LockTTL is how long a started rotation stays in Rotating before it
	// expires to Stale. Zero means the default of 15 minutes.
	// Env: ROTATION_LOCK_TTL
	LockTTL time.Duration `env:"LOCK_TTL"`

	// StaleRetention is how long past expiry a candidate remains
	// recoverable. Zero means the default of 24 hours.
	// Env: ROTATION_STALE_RETENTION
	StaleRetention time.Duration `env:"STALE_RETENTION"`
}

// History holds item-history retention settings.
type History struct {
	// MaxVersions caps history rows per item. Zero means the default of 5.
	// Env: HISTORY_MAX_VERSIONS
	MaxVersions int `env:"MAX_VERSIONS"`

	// RetentionDays is the TTL applied by the background pruner. Zero
	// means the default of 90 days.
	// Env: HISTORY_RETENTION_DAYS
	RetentionDays int `env:"RETENTION_DAYS"`
}

// Workers holds background-task intervals. Zero values select defaults.
type Workers struct {
	// HistoryPruneInterval is how often the history TTL pruner runs.
	// Env: WORKERS_HISTORY_PRUNE_INTERVAL
	HistoryPruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL"`

	// RotationPruneInterval is how often expired rotation candidates are
	// purged. Env: WORKERS_ROTATION_PRUNE_INTERVAL
	RotationPruneInterval time.Duration `env:"ROTATION_PRUNE_INTERVAL"`

	// PoolSampleInterval is how often the DB pool-depth gauge is sampled.
	// Env: WORKERS_POOL_SAMPLE_INTERVAL
	PoolSampleInterval time.Duration `env:"POOL_SAMPLE_INTERVAL"`
}

// Defaults applied by validate for zero-valued fields.
const (
	DefaultMaxBodyBytes          = 4 << 20
	DefaultKDFConcurrency        = 2
	DefaultMaxOpenConns          = 8
	DefaultRequestTimeout        = 30 * time.Second
	DefaultRotationLockTTL       = 15 * time.Minute
	DefaultStaleRetention        = 24 * time.Hour
	DefaultHistoryMaxVersions    = 5
	DefaultHistoryRetentionDays  = 90
	DefaultHistoryPruneInterval  = time.Hour
	DefaultRotationPruneInterval = 15 * time.Minute
	DefaultPoolSampleInterval    = 15 * time.Second
)

// MasterKey decodes the configured server master key. Returns nil without
// error when no key is configured: the server then runs without shared
// server vaults and rotation.
func (a App) MasterKey() (*crypto.SecretKey, error) {
	return decodeKey(a.MasterKeyHex)
}

// IdentityKey decodes the configured server identity key.
func (a App) IdentityKey() (*crypto.SecretKey, error) {
	return decodeKey(a.IdentityKeyHex)
}

func decodeKey(hexKey string) (*crypto.SecretKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, ErrInvalidMasterKey
	}
	key, err := crypto.KeyFromBytes(raw)
	if err != nil {
		return nil, ErrInvalidMasterKey
	}
	for i := range raw {
		raw[i] = 0
	}
	return key, nil
}

// GetStructuredConfig loads, merges, and validates the server configuration
// from all sources in priority order (later sources fill zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
