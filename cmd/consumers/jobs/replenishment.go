package jobs

import (
	"context"
	"sync"
	"time"

	"stadiumtix/internal/logger"
	"stadiumtix/internal/models"
)

// MonthlyGenerator запускает ежемесячное пополнение
type MonthlyGenerator interface {
	RunMonthlyGeneration(ctx context.Context, stadiumID int64) (*models.GenerationResult, error)
}

// ReplenishmentJob periodically checks whether next month's special tickets
// have to be generated. The month key makes extra checks cheap no-ops, so
// several consumer instances may run it side by side.
type ReplenishmentJob struct {
	generator MonthlyGenerator
	stadiumID int64
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
}

func NewReplenishmentJob(generator MonthlyGenerator, stadiumID int64, interval time.Duration) *ReplenishmentJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReplenishmentJob{
		generator: generator,
		stadiumID: stadiumID,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start runs a check immediately and then on every tick
func (j *ReplenishmentJob) Start(ctx context.Context) {
	logger.Get().Info("Starting replenishment job", "check_interval", j.interval, "stadium_id", j.stadiumID)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				logger.Get().Info("Replenishment job stopped")
				return
			}
		}
	}()
}

func (j *ReplenishmentJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// RunOnce performs a single check. Errors are logged, the next tick retries.
func (j *ReplenishmentJob) RunOnce(ctx context.Context) *models.GenerationResult {
	result, err := j.generator.RunMonthlyGeneration(ctx, j.stadiumID)
	if err != nil {
		logger.Get().Error("Monthly replenishment failed", "stadium_id", j.stadiumID, "error", err)
		return nil
	}
	if result.Skipped {
		logger.Get().Debug("Monthly replenishment not due", "stadium_id", j.stadiumID, "reason", result.Reason)
		return result
	}

	logger.Get().Info("Monthly replenishment completed",
		"stadium_id", j.stadiumID,
		"month", result.Month,
		"created", result.TotalCreated)
	return result
}
