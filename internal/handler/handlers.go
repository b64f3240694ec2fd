// SPDX-License-Identifier: Apache-2.0

// Package handler aggregates the transport handlers of the server.
package handler

import (
	"github.com/zann-sh/zann/internal/config"
	httphandler "github.com/zann-sh/zann/internal/handler/http"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/service"
)

// Handlers groups the transport-facing handlers. The wire protocol of the
// core is JSON over HTTP; this indirection keeps main wiring uniform.
type Handlers struct {
	HTTP *httphandler.Handler
}

// NewHandlers constructs the handler set.
func NewHandlers(services *service.Services, cfg *config.StructuredConfig, log *logger.Logger) (*Handlers, error) {
	return &Handlers{
		HTTP: httphandler.NewHandler(services, cfg, log),
	}, nil
}
