// Package main is the entry point for the brickvault service: a ledger of
// record for fractional property investments with reconciliation against
// on-chain balances and an investment planner.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/brickvault/internal/config"
	"github.com/aristath/brickvault/internal/di"
	ledgerhandlers "github.com/aristath/brickvault/internal/modules/ledger/handlers"
	planninghandlers "github.com/aristath/brickvault/internal/modules/planning/handlers"
	planshandlers "github.com/aristath/brickvault/internal/modules/plans/handlers"
	portfoliohandlers "github.com/aristath/brickvault/internal/modules/portfolio/handlers"
	propertieshandlers "github.com/aristath/brickvault/internal/modules/properties/handlers"
	reconciliationhandlers "github.com/aristath/brickvault/internal/modules/reconciliation/handlers"
	"github.com/aristath/brickvault/internal/server"
	"github.com/aristath/brickvault/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger so the configuration error is still reported
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "brickvault",
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting brickvault")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Databases: container.Databases(),
		EventBus:  container.EventBus,
		Modules: []server.RouteRegistrar{
			ledgerhandlers.NewHandler(container.LedgerService, log),
			propertieshandlers.NewHandler(container.PropertyService, log),
			portfoliohandlers.NewHandler(container.PortfolioService, log),
			reconciliationhandlers.NewHandler(container.ReconciliationService, log),
			planninghandlers.NewHandler(container.SessionStore, container.PropertyService, log),
			planshandlers.NewHandler(container.PlanStore, log),
		},
		DataDir:        cfg.DataDir,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.AllowedOrigins(),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for a running backup or maintenance job to finish
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
