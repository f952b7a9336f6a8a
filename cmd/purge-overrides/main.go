// Command purge-overrides deletes per-date ledger rows for dates that have passed.
package main

import (
	"context"
	"flag"
	"time"

	"stadiumtix/internal/calendar"
	"stadiumtix/internal/config"
	"stadiumtix/internal/database"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/repository"
	"stadiumtix/internal/service"
)

func main() {
	var before string
	var dryRun bool
	flag.StringVar(&before, "before", "", "Delete rows dated before YYYY-MM-DD (default: today minus PURGE_RETENTION_DAYS)")
	flag.BoolVar(&dryRun, "dry-run", false, "Only count the rows that would be deleted")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	cutoff, err := cfg.Inventory.NewCutoff()
	if err != nil {
		logger.Fatal("Invalid inventory configuration", "error", err)
	}

	services := service.NewServices(repository.NewStores(db), cutoff, nil, nil, service.ReplenishmentOptions{
		StadiumID: cfg.Replenishment.StadiumID,
	})

	boundary := services.Overrides.RetentionBoundary(cfg.Replenishment.PurgeRetentionDays)
	if before != "" {
		boundary, err = calendar.ParseDate(before)
		if err != nil {
			logger.Fatal("Invalid -before date", "before", before, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if dryRun {
		n, err := services.Overrides.CountBefore(ctx, boundary)
		if err != nil {
			logger.Fatal("Failed to count overrides", "error", err)
		}
		logger.Get().Info("Dry run", "before", calendar.FormatDate(boundary), "would_delete", n)
		return
	}

	n, err := services.Overrides.PurgeBefore(ctx, boundary)
	if err != nil {
		logger.Fatal("Failed to purge overrides", "error", err)
	}
	logger.Get().Info("Purge completed", "before", calendar.FormatDate(boundary), "deleted", n)
}
