package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stadiumtix/cmd/consumers/jobs"
	"stadiumtix/internal/config"
	"stadiumtix/internal/consumers"
	"stadiumtix/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	logger.Get().Info("Starting consumers service...")

	// Отдельный client id для consumers
	cfg.NATS.ClientID = "stadiumtix-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services := consumerService.Services()
	var replenishment *jobs.ReplenishmentJob
	if cfg.Replenishment.Enabled {
		replenishment = jobs.NewReplenishmentJob(services.Replenishment, cfg.Replenishment.StadiumID, cfg.Replenishment.CheckInterval)
		replenishment.Start(ctx)
	}
	purge := jobs.NewPurgeJob(services.Overrides, cfg.Replenishment.PurgeRetentionDays, cfg.Replenishment.PurgeInterval)
	purge.Start(ctx)

	logger.Get().Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	if replenishment != nil {
		replenishment.Stop()
	}
	purge.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
