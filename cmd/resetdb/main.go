// resetdb drops and recreates the database schema. Destructive reset is
// deliberately kept out of the server's boot path; it only happens here,
// and only with the -yes flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"coin-price-etl/config"
	"coin-price-etl/storage"
	"coin-price-etl/utils"
)

func main() {
	yes := flag.Bool("yes", false, "actually drop and recreate all tables")
	flag.Parse()

	if !*yes {
		fmt.Println("resetdb deletes every persisted product and stats record.")
		fmt.Println("Re-run with -yes to confirm.")
		os.Exit(1)
	}

	logger := utils.NewLogger()
	cfg := config.Load()

	store, err := storage.NewPostgresStore(cfg.DSN(), logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Reset(context.Background()); err != nil {
		logger.Error("Reset failed: %v", err)
		os.Exit(1)
	}

	logger.Info("Schema reset complete")
}
