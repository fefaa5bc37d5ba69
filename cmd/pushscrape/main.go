// pushscrape runs one extraction and posts the result to a running
// coin-price-etl server's ingest endpoint. It is the decoupled-deployment
// companion: extraction in this process, persistence and stats in the server.
package main

import (
	"context"
	"os"

	"github.com/go-resty/resty/v2"

	"coin-price-etl/config"
	"coin-price-etl/scraper/numiscorner"
	"coin-price-etl/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:" + cfg.Port
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ExtractTimeout)
	defer cancel()

	items, err := numiscorner.New(cfg, logger).Extract(ctx)
	if err != nil {
		logger.Error("Extraction failed: %v", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		logger.Warn("No items extracted — nothing to push")
		return
	}

	resp, err := resty.New().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(items).
		Post(serverURL + "/prices")
	if err != nil {
		logger.Error("Push to %s failed: %v", serverURL, err)
		os.Exit(1)
	}
	if resp.IsError() {
		logger.Error("Server rejected push: %s — %s", resp.Status(), resp.String())
		os.Exit(1)
	}

	logger.Info("Pushed %d items: %s", len(items), resp.String())
}
