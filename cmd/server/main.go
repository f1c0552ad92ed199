package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/leadgate/internal/api"
	"github.com/ignite/leadgate/internal/app"
	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func configPath() string {
	if p := os.Getenv("LEADGATE_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	log.Println("Starting leadgate server...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	gate := a.Gate()
	jobs := a.Jobs()
	if cfg.Jobs.RunInServer {
		jobs.Start(ctx)
		log.Println("Scheduled jobs running in-process")
	} else {
		log.Println("Scheduled jobs disabled here; run cmd/worker")
	}
	if cfg.Server.AdminToken == "" {
		log.Println("ADMIN_TOKEN not set: operator endpoints answer 401")
	}

	server := api.NewServer(cfg.Server, a.Handlers(gate, jobs))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// notifications, CRM lookups and exports already started must finish
	gate.Drain()
	log.Println("Server stopped")
}
