// Package main is the entry point for the portfolio rebalancing service.
// It stores positions and fund allocation targets, keeps prices fresh from
// fintual.cl, and computes whole-share rebalance orders on request.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/rebalancer/internal/clients/fintual"
	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	allocationhandlers "github.com/aristath/rebalancer/internal/modules/allocation/handlers"
	"github.com/aristath/rebalancer/internal/modules/history"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/rebalancer/internal/modules/portfolio/handlers"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/rebalancer/internal/modules/rebalancing/handlers"
	"github.com/aristath/rebalancer/internal/scheduler"
	"github.com/aristath/rebalancer/internal/server"
	"github.com/aristath/rebalancer/internal/solver"
	"github.com/aristath/rebalancer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting rebalancer")

	// Databases: config.db holds fund definitions, portfolio.db holds
	// positions, prices and run history
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	// Repositories and schemas
	allocationRepo := allocation.NewRepository(configDB.Conn(), log)
	portfolioRepo := portfolio.NewRepository(portfolioDB.Conn(), log)
	historyRepo := history.NewRepository(portfolioDB.Conn(), log)

	for name, ensure := range map[string]func() error{
		"allocation": allocationRepo.EnsureSchema,
		"portfolio":  portfolioRepo.EnsureSchema,
		"history":    historyRepo.EnsureSchema,
	} {
		if err := ensure(); err != nil {
			log.Fatal().Err(err).Str("schema", name).Msg("Failed to ensure schema")
		}
	}

	// Services
	allocationService := allocation.NewService(allocationRepo, log)
	if err := allocationService.EnsureDefaults(cfg.AllocationSeedPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed fund allocations")
	}

	portfolioService := portfolio.NewService(portfolioRepo, log)
	rebalancingService := rebalancing.NewService(solver.NewBranchBound(log), log)

	// Price client, allocation scraper, background jobs
	fintualClient := fintual.NewClient(cfg.FintualBaseURL, log)
	fintualScraper := fintual.NewScraper(cfg.FintualBaseURL, log)

	sched := scheduler.New(log)
	priceJob := scheduler.NewPriceRefreshJob(fintualClient, portfolioRepo, log)
	if err := sched.AddJob(cfg.PriceRefreshSpec, priceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}
	if err := sched.AddJob("0 0 3 * * *", scheduler.NewHistoryPruneJob(historyRepo, 0, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history prune job")
	}

	// Prime prices on startup so the first rebalance has a full table
	if err := sched.RunNow(priceJob); err != nil {
		log.Warn().Err(err).Msg("Initial price refresh failed")
	}
	sched.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		ConfigDB:    configDB,
		PortfolioDB: portfolioDB,
		AllocationHandlers: allocationhandlers.NewHandler(allocationService, fintualScraper, log),
		PortfolioHandlers:  portfoliohandlers.NewHandler(portfolioService, log),
		RebalancingHandlers: rebalancinghandlers.NewHandler(
			rebalancingService, allocationService, portfolioService, historyRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
