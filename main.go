package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coin-price-etl/config"
	"coin-price-etl/pipeline"
	"coin-price-etl/scraper/numiscorner"
	"coin-price-etl/server"
	"coin-price-etl/services"
	"coin-price-etl/storage"
	"coin-price-etl/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	logger.Info("=== Coin Price ETL starting ===")
	logger.Info("Config — target: %s | interval: %s | pages: %d | backend: %s",
		cfg.TargetURL, cfg.ScrapeInterval, cfg.PagesToScrape, cfg.StorageBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.StorageBackend == "memory" {
		store = storage.NewMemoryStore()
		logger.Warn("Using in-memory storage — data is lost on restart")
	} else {
		pg, err := storage.NewPostgresStore(cfg.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			os.Exit(1)
		}
		store = pg
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		logger.Error("Schema setup failed: %v", err)
		os.Exit(1)
	}

	snapshot := pipeline.NewSnapshot()
	extractor := numiscorner.New(cfg, logger)
	transformer := services.NewStatsService(logger)
	pipe := pipeline.New(cfg, logger, store, extractor, transformer, snapshot)

	go pipe.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(store, snapshot, logger).Router(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("HTTP server listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server failed: %v", err)
		os.Exit(1)
	}
}
