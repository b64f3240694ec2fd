// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/zann-sh/zann/internal/config"
	"github.com/zann-sh/zann/internal/handler"
	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/server"
	"github.com/zann-sh/zann/internal/service"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("zann-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}

	log.Info().Msg("starting zann server")

	ctx, stop := server.SignalContext()
	defer stop()

	storages, err := store.NewStorages(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating storages")
	}

	masterKey, err := cfg.App.MasterKey()
	if err != nil {
		log.Fatal().Err(err).Msg("error decoding master key")
	}
	if masterKey == nil {
		log.Warn().Msg("no master key configured; shared server vaults and rotation are unavailable")
	}

	services, err := service.NewServices(storages, cfg, masterKey, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating services")
	}

	handlers, err := handler.NewHandlers(services, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating handlers")
	}

	workers.NewWorkers(cfg, storages, log).Run(ctx)

	srv := server.NewServer(handlers.HTTP.Init(), cfg.Server, log)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
