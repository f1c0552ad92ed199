package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/leadgate/internal/app"
	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

func main() {
	log.Println("Starting leadgate worker...")

	path := os.Getenv("LEADGATE_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	if cfg.Analytics.Backend != "redis" {
		// the in-memory aggregator only sees this process, which takes no leads
		log.Fatal("Worker requires analytics.backend: redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	jobs := a.Jobs()
	if jobs.Refresher == nil && jobs.Dispatcher == nil && jobs.Retention == nil {
		log.Fatal("Nothing to run: configure redis, telegram+report or database")
	}
	if jobs.Refresher != nil {
		log.Println("Blacklist refresher enabled")
	}
	if jobs.Dispatcher != nil {
		log.Println("Quality report dispatcher enabled")
	}
	if jobs.Retention != nil {
		log.Println("Outcome log retention enabled")
	}
	jobs.Start(ctx)

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	log.Println("Worker stopped")
}
