// SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"
	"time"
)

// ParseFlags parses the server's command-line flags into a partial
// StructuredConfig. Zero values mean "not set" and lose against env vars
// during the merge.
//
// Flags:
//
//	-a address in [host]:[port] format
//	-d database DSN
//	-c/-config JSON config file path
//	-master-key server master key (hex)
//	-identity-key server identity key (hex)
//	-token-sign-key service-token verification key
//	-token-issuer expected token issuer
//	-request-timeout request timeout (e.g. 30s)
//	-rotation-lock-ttl rotation lock window (e.g. 15m)
//	-rotation-stale-retention stale candidate retention (e.g. 24h)
//	-history-max-versions history cap per item
//	-history-retention-days history TTL in days
func ParseFlags() *StructuredConfig {
	var (
		address            string
		databaseDSN        string
		jsonConfigPath     string
		masterKey          string
		identityKey        string
		tokenSignKey       string
		tokenIssuer        string
		requestTimeout     time.Duration
		rotationLockTTL    time.Duration
		rotationStale      time.Duration
		historyMaxVersions int
		historyRetention   int
	)

	flag.StringVar(&address, "a", "", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&masterKey, "master-key", "", "Server master key (hex)")
	flag.StringVar(&identityKey, "identity-key", "", "Server identity key (hex)")
	flag.StringVar(&tokenSignKey, "token-sign-key", "", "Service-token signing key")
	flag.StringVar(&tokenIssuer, "token-issuer", "", "Service-token issuer")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g. 30s)")
	flag.DurationVar(&rotationLockTTL, "rotation-lock-ttl", 0, "Rotation lock TTL (e.g. 15m)")
	flag.DurationVar(&rotationStale, "rotation-stale-retention", 0, "Stale candidate retention (e.g. 24h)")
	flag.IntVar(&historyMaxVersions, "history-max-versions", 0, "History cap per item")
	flag.IntVar(&historyRetention, "history-retention-days", 0, "History TTL in days")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			MasterKeyHex:   masterKey,
			IdentityKeyHex: identityKey,
			TokenSignKey:   tokenSignKey,
			TokenIssuer:    tokenIssuer,
		},
		Storage: Storage{
			DB: DB{DSN: databaseDSN},
		},
		Server: Server{
			HTTPAddress:    address,
			RequestTimeout: requestTimeout,
		},
		Rotation: Rotation{
			LockTTL:        rotationLockTTL,
			StaleRetention: rotationStale,
		},
		History: History{
			MaxVersions:   historyMaxVersions,
			RetentionDays: historyRetention,
		},
		JSONFilePath: jsonConfigPath,
	}
}
