package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extgov/api"
	"extgov/config"
	"extgov/core/governance"
	"extgov/core/scheduler"
	"extgov/core/store"
	"extgov/core/utils"
)

const sweepTimeout = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db init: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	svc, err := governance.Build(cfg, db, logger)
	if err != nil {
		logger.Fatalf("governance: %v", err)
	}

	var (
		sweeps  *scheduler.Scheduler
		workers []api.BackgroundWorker
	)
	if cfg.Scheduler.Enabled {
		sweeps, err = scheduler.New(svc, cfg.Scheduler.Cron, sweepTimeout, logger)
		if err != nil {
			logger.Fatalf("scheduler: %v", err)
		}
		workers = append(workers, sweeps)
	}
	background := api.BuildBackgroundController(logger, workers...)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	if err := background.Start(appCtx); err != nil {
		logger.Fatalf("background workers: %v", err)
	}

	srv := api.NewServer(cfg, logger, api.ServerDeps{DB: db, Service: svc, Scheduler: sweeps})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
	if err := background.Stop(ctx); err != nil {
		logger.Errorf("background shutdown: %v", err)
	}
}
