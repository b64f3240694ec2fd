// SPDX-License-Identifier: Apache-2.0

// Package http implements the HTTP transport of the zann server: the /v1
// routes, the identity and tracing middleware, and the mapping from service
// errors to wire error kinds. Authentication itself happens upstream; this
// layer only consumes a resolved identity.
package http

import (
	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/service"
	"github.com/zann-sh/zann/internal/utils"
)

// Handler is the root HTTP handler wiring route groups and middleware.
// Constructed once at startup; not safe to copy afterwards.
type Handler struct {
	services     *service.Services
	logger       *logger.Logger
	maxBody      int64
	signKey      string
	issuer       string
	serverName   string
	version      string
	fingerprint  string
	kdfGate      *utils.KDFGate
	serviceToken config.ServiceToken
}

// NewHandler constructs a [Handler] with the service container, limits, and
// token-verification settings from cfg.
func NewHandler(services *service.Services, cfg *config.StructuredConfig, log *logger.Logger) *Handler {
	fingerprint := ""
	if identityKey, err := cfg.App.IdentityKey(); err == nil && identityKey != nil {
		fingerprint = utils.ServerFingerprint(identityKey)
		identityKey.Zero()
	}

	log.Debug().Msg("http handler created")
	return &Handler{
		services:     services,
		logger:       log,
		maxBody:      cfg.App.MaxBodyBytes,
		signKey:      cfg.App.TokenSignKey,
		issuer:       cfg.App.TokenIssuer,
		serverName:   cfg.App.ServerName,
		version:      cfg.App.Version,
		fingerprint:  fingerprint,
		kdfGate:      utils.NewKDFGate(cfg.App.KDFConcurrency),
		serviceToken: cfg.App.ServiceToken,
	}
}
