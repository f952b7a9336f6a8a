package jobs

import (
	"context"
	"sync"
	"time"

	"stadiumtix/internal/logger"
)

type OverridePurger interface {
	PurgeExpired(ctx context.Context, retentionDays int) (int64, error)
}

// PurgeJob удаляет строки журнала за прошедшие даты
type PurgeJob struct {
	purger        OverridePurger
	retentionDays int
	interval      time.Duration
	ticker        *time.Ticker
	done          chan struct{}
	stopOnce      sync.Once
}

func NewPurgeJob(purger OverridePurger, retentionDays int, interval time.Duration) *PurgeJob {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &PurgeJob{
		purger:        purger,
		retentionDays: retentionDays,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *PurgeJob) Start(ctx context.Context) {
	logger.Get().Info("Starting override purge job", "interval", j.interval, "retention_days", j.retentionDays)

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
				logger.Get().Info("Override purge job stopped")
				return
			}
		}
	}()
}

func (j *PurgeJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// RunOnce returns the number of deleted rows, -1 on failure
func (j *PurgeJob) RunOnce(ctx context.Context) int64 {
	n, err := j.purger.PurgeExpired(ctx, j.retentionDays)
	if err != nil {
		logger.Get().Error("Override purge failed", "error", err)
		return -1
	}
	return n
}
