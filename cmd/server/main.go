package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"emitenwatch/internal/adapter/httpapi"
	"emitenwatch/internal/adapter/repository/sqlite"
	"emitenwatch/internal/adapter/upstream"
	"emitenwatch/internal/config"
	"emitenwatch/internal/scheduler"
	"emitenwatch/internal/usecase/analysis"
	"emitenwatch/internal/usecase/auth"
	"emitenwatch/internal/usecase/enrich"
	"emitenwatch/internal/usecase/watchlist"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// 1. Setup Database
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := sqlite.NewDB(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 2. Initialize Repositories (SQLite)
	groupCache := sqlite.NewGroupCacheRepository(db)
	itemCache := sqlite.NewItemCacheRepository(db)
	flagRepo := sqlite.NewFlagRepository(db)
	settingRepo := sqlite.NewSettingRepository(db)
	jobRepo := sqlite.NewAnalysisJobRepository(db)

	// 3. Initialize upstream client and services (use cases)
	upstreamClient := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Token)
	enricher := enrich.NewEnricher(flagRepo, upstreamClient)
	watchlistService := watchlist.NewService(upstreamClient, groupCache, itemCache, enricher)
	tracker := analysis.NewTracker(jobRepo, upstreamClient)
	authService := auth.NewService(settingRepo)

	// 4. Background refresh scheduler
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, watchlistService)
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("Failed to register refresh task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// 5. Start HTTP server
	pollInterval := time.Duration(cfg.Analysis.PollIntervalSeconds) * time.Second
	api := httpapi.NewServer(watchlistService, tracker, authService, flagRepo, settingRepo, pollInterval, cfg.Server.APIToken)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(srv, tracker)
}

// waitForShutdown waits for SIGTERM or SIGINT, drains the HTTP server and
// lets in-flight analysis runners finish.
func waitForShutdown(srv *http.Server, tracker *analysis.Tracker) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[WARN] HTTP server shutdown: %v", err)
	}
	tracker.Wait()
	log.Println("HTTP server stopped")
}
