// SPDX-License-Identifier: Apache-2.0

// Package server owns the HTTP listener lifecycle: startup, signal
// handling, and graceful shutdown.
package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/logger"
)

// Server wraps the HTTP server with graceful lifecycle handling.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer builds a [Server] around the given handler.
func NewServer(handler http.Handler, cfg config.Server, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddress,
			Handler:      handler,
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
		logger: log,
	}
}

// Run serves until SIGINT/SIGTERM/SIGQUIT, then shuts down gracefully. It
// returns only an error; background workers that need to stop on the same
// signals take their context from [SignalContext].
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Err(err).Msg("http server shutdown")
		return err
	}
	s.logger.Info().Msg("server shut down gracefully")
	return nil
}

// SignalContext returns a context cancelled on the standard stop signals,
// for callers that run workers next to the server.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
}
