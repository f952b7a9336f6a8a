// Command generator creates special tickets for a month from the
// replenishment roster. Without -month it behaves like the scheduled
// monthly run and does nothing if this month was already handled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"stadiumtix/internal/cache"
	"stadiumtix/internal/calendar"
	"stadiumtix/internal/config"
	"stadiumtix/internal/database"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/messaging"
	"stadiumtix/internal/models"
	"stadiumtix/internal/repository"
	"stadiumtix/internal/service"
)

var (
	stadiumID = flag.Int64("stadium", 0, "Stadium ID (0 = REPLENISHMENT_STADIUM_ID)")
	month     = flag.String("month", "", "Month to fill, YYYY-MM (empty = scheduled monthly run, or next month with -dry-run)")
	dryRun    = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if *stadiumID == 0 {
		*stadiumID = cfg.Replenishment.StadiumID
	}

	logger.Get().Info("Starting ticket generator...", "stadium_id", *stadiumID, "month", *month, "dry_run", *dryRun)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	cutoff, err := cfg.Inventory.NewCutoff()
	if err != nil {
		logger.Fatal("Invalid inventory configuration", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	var offersCache service.OffersCache
	if cfg.Redis.Enabled {
		if c, err := cache.NewOffersCache(cfg.Redis); err != nil {
			logger.Get().Warn("Offers cache unavailable, invalidation skipped", "error", err)
		} else {
			defer c.Close()
			offersCache = c
		}
	}

	services := service.NewServices(repository.NewStores(db), cutoff, offersCache, natsClient,
		service.ReplenishmentOptions{
			StadiumID:  cfg.Replenishment.StadiumID,
			MaxPerDate: cfg.Replenishment.MaxPerDate,
		})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := generate(ctx, services.Replenishment)
	if err != nil {
		logger.Fatal("Ticket generation failed", "error", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Fatal("Failed to print result", "error", err)
	}

	logger.Get().Info("Ticket generation completed",
		"month", result.Month, "created", result.TotalCreated, "skipped", result.Skipped)
}

func generate(ctx context.Context, r *service.ReplenishmentService) (*models.GenerationResult, error) {
	if *month == "" {
		if *dryRun {
			return r.PlanNextMonth(ctx, *stadiumID)
		}
		return r.RunMonthlyGeneration(ctx, *stadiumID)
	}
	year, m, err := calendar.ParseMonthKey(*month)
	if err != nil {
		return nil, err
	}
	if *dryRun {
		return r.PlanForMonth(ctx, *stadiumID, year, m)
	}
	return r.GenerateForMonth(ctx, *stadiumID, year, m)
}
