// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// ClientConfig configures the local cache agent: where the SQLite cache
// lives, which server to mirror, and how often to run the sync job.
type ClientConfig struct {
	// CachePath is the SQLite database file of the local cache.
	// Env: ZANN_CACHE_PATH
	CachePath string `env:"ZANN_CACHE_PATH"`

	// ServerURL is the base URL of the zann server.
	// Env: ZANN_SERVER_URL
	ServerURL string `env:"ZANN_SERVER_URL"`

	// ServerFingerprint pins the server identity. When set, a mismatch
	// reported by /v1/meta aborts every sync for this storage.
	// Env: ZANN_SERVER_FINGERPRINT
	ServerFingerprint string `env:"ZANN_SERVER_FINGERPRINT"`

	// Token is the bearer credential presented to the server.
	// Env: ZANN_TOKEN
	Token string `env:"ZANN_TOKEN"`

	// SyncInterval is the period of the background sync job. Zero means
	// the default of one minute.
	// Env: ZANN_SYNC_INTERVAL
	SyncInterval time.Duration `env:"ZANN_SYNC_INTERVAL"`
}

// GetClientConfig loads the agent configuration from the environment and
// applies defaults.
func GetClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.CachePath == "" {
		cfg.CachePath = "zann-cache.db"
	}
	if cfg.ServerURL == "" {
		return nil, ErrNoServerURL
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = time.Minute
	}
	return cfg, nil
}
