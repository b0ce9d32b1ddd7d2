package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"kontor/internal/amqp"
	"kontor/internal/api"
	"kontor/internal/cache"
	"kontor/internal/cli"
	apphttp "kontor/internal/http"
	"kontor/internal/services"
	"kontor/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	apiClient, err := api.New(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.APIToken,
		Timeout:   cfg.APITimeout,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
	})
	if err != nil {
		logger.Error("Failed to initialize API client", "error", err)
		os.Exit(1)
	}

	// Periodic eviction of expired cache entries.
	cacheManager := cache.NewManager()
	cacheManager.Register(apiClient.Cache())
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)

	var snapshots *storage.SnapshotStore
	if cfg.SnapshotDBPath != "" {
		snapshots = cli.InitSnapshotStore(logger, cfg.SnapshotDBPath)
		logger.Info("Snapshot store initialized", "path", cfg.SnapshotDBPath)
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	finance := services.NewFinanceService(apiClient, events, snapshots)
	dashboard := services.NewDashboardService(finance, 12)

	srv := apphttp.NewServer(":"+cfg.Port, finance, dashboard)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := finance.Close(); err != nil {
			logger.Error("Finance service close error", "error", err)
		}
	})

	logger.Info("Starting kontor server", "port", cfg.Port, "api_base_url", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
