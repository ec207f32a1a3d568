package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offmall_watcher/api"
	"offmall_watcher/config"
	"offmall_watcher/httputil"
	"offmall_watcher/logging"
	"offmall_watcher/scheduler"
	"offmall_watcher/scraper"
	"offmall_watcher/services"
	"offmall_watcher/storage"
)

var (
	scanOnce  = flag.Bool("scan", false, "Run one scan pass and exit")
	checkOnce = flag.Bool("check", false, "Run one check pass and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("watcher.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting offmall_watcher...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Watching %d categories", len(cfg.Categories))
	for _, cat := range cfg.Categories {
		log.Printf("  - %s (%s)", cat.Name, cat.Key)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	fetcher := httputil.NewFetcher(httputil.NewClients(), cfg.UserAgent)
	probe := scraper.NewSoldProbe(fetcher)

	keywordSvc := services.NewKeywordService()
	scanSvc := services.NewScanService(cfg, store, fetcher)
	checkSvc := services.NewCheckService(cfg, store, probe, keywordSvc)

	if *scanOnce {
		log.Println("Running scan...")
		if _, err := scanSvc.Run(ctx); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		return
	}
	if *checkOnce {
		log.Println("Running check...")
		if _, err := checkSvc.Run(ctx); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, scanSvc, checkSvc)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(cfg, store, scanSvc, checkSvc).Handler(),
	}
	go func() {
		log.Printf("API listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to Postgres")
		return store, nil
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}
