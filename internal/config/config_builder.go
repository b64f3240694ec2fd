// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading and merging for the zann
// server and the local cache agent.
//
// Configuration is assembled from multiple sources in priority order (later
// sources fill zero-valued fields of earlier ones):
//  1. Environment variables  — loaded via withEnv
//  2. Command-line flags     — loaded via withFlags
//  3. JSON file              — loaded via withJSON, path resolved from the
//     sources above
package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
)

// configBuilder accumulates partial StructuredConfig values from different
// sources and merges them on build. Each with* method appends a source and
// returns the same builder so calls chain; errors accumulate into err and
// make build fail fast.
type configBuilder struct {
	configs []*StructuredConfig
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{configs: make([]*StructuredConfig, 0, 4)}
}

// build merges the accumulated sources in order (mergo.Merge: each later
// source fills only zero-valued fields) and validates the result.
func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error building config: %w", b.err)
	}

	config := new(StructuredConfig)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	return config, config.validate()
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &StructuredConfig{}
	if err := parseEnv(envCfg); err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withFlags() *configBuilder {
	b.configs = append(b.configs, ParseFlags())
	return b
}

// withJSON resolves the JSON config path from the sources loaded so far
// (last non-empty wins) and, when present, appends the parsed file.
func (b *configBuilder) withJSON() *configBuilder {
	var jsonPath string
	for _, cfg := range b.configs {
		if cfg.JSONFilePath != "" {
			jsonPath = cfg.JSONFilePath
		}
	}
	if jsonPath == "" {
		return b
	}

	jsonCfg, err := parseJSON(jsonPath)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.configs = append(b.configs, jsonCfg)
	return b
}

// validate applies defaults to zero-valued fields and rejects combinations
// the server cannot run with.
func (c *StructuredConfig) validate() error {
	if c.Storage.DB.DSN == "" {
		return ErrNoDatabaseDSN
	}
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = "0.0.0.0:8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.App.MaxBodyBytes == 0 {
		c.App.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.App.KDFConcurrency == 0 {
		c.App.KDFConcurrency = DefaultKDFConcurrency
	}
	if c.Storage.DB.MaxOpenConns == 0 {
		c.Storage.DB.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Rotation.LockTTL == 0 {
		c.Rotation.LockTTL = DefaultRotationLockTTL
	}
	if c.Rotation.StaleRetention == 0 {
		c.Rotation.StaleRetention = DefaultStaleRetention
	}
	if c.History.MaxVersions == 0 {
		c.History.MaxVersions = DefaultHistoryMaxVersions
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = DefaultHistoryRetentionDays
	}
	if c.Workers.HistoryPruneInterval == 0 {
		c.Workers.HistoryPruneInterval = DefaultHistoryPruneInterval
	}
	if c.Workers.RotationPruneInterval == 0 {
		c.Workers.RotationPruneInterval = DefaultRotationPruneInterval
	}
	if c.Workers.PoolSampleInterval == 0 {
		c.Workers.PoolSampleInterval = DefaultPoolSampleInterval
	}
	if _, err := c.App.MasterKey(); err != nil {
		return err
	}
	if _, err := c.App.IdentityKey(); err != nil {
		return err
	}
	return nil
}
