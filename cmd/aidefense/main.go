package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/networkbuster/aidefense/internal/config"
	"github.com/networkbuster/aidefense/internal/orchestrator"
)

func main() {
	log.Printf("AI Defense starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded")
	log.Printf("  HTTP Port: %s", cfg.HTTPPort)
	log.Printf("  Monitoring Interval: %s", cfg.MonitoringInterval)
	log.Printf("  Alert Threshold: %.2f", cfg.AlertThreshold)
	log.Printf("  Auto Response: %v", cfg.AutoResponse)

	orch := orchestrator.NewOrchestrator(cfg)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	go func() {
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Orchestrator error: %v", err)
		}
	}()

	// Block until shutdown signal
	<-sigChan
	log.Printf("Shutdown signal received...")

	cancel()

	if err := orch.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Printf("AI Defense stopped successfully")
}
