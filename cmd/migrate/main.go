package main

import (
	"context"
	"log"
	"time"

	"extgov/config"
	"extgov/core/store"
	"extgov/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	before, err := store.GetMigrationStatus(checkCtx, db)
	cancel()
	if err != nil {
		logger.Fatalf("migration status: %v", err)
	}
	if before.HasGooseTable && !before.HasPending {
		logger.Printf("schema up to date version=%d", before.CurrentVersion)
		return
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	logger.Printf("migrations applied from=%d to=%d", before.CurrentVersion, before.LatestVersion)
}
