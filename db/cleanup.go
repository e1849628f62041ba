package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CleanupResult reports one retention pass.
type CleanupResult struct {
	Deleted  int64
	Vacuumed bool
	Duration time.Duration
}

// Cleanup deletes analyses older than retention and runs VACUUM when
// anything was removed. A non-positive retention keeps everything.
func (d *Database) Cleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retention <= 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	cutoff := formatTime(time.Now().Add(-retention))
	res, err := d.ExecContext(ctx, deleteOlderThanQuery, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old analyses: %w", err)
	}
	result.Deleted, err = res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if result.Deleted > 0 {
		// VACUUM cannot run inside a transaction; rows are already gone
		// if it fails.
		if _, err := d.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
		result.Vacuumed = true
	}

	result.Duration = time.Since(start)
	return result, nil
}

// CleanupSchedulerConfig configures StartCleanupScheduler.
type CleanupSchedulerConfig struct {
	Retention time.Duration
	Interval  time.Duration
	// OnCleanup is called after every pass (optional).
	OnCleanup func(result CleanupResult, err error)
}

// DefaultCleanupSchedulerConfig keeps 30 days and runs once a day.
func DefaultCleanupSchedulerConfig() CleanupSchedulerConfig {
	return CleanupSchedulerConfig{
		Retention: 30 * 24 * time.Hour,
		Interval:  24 * time.Hour,
	}
}

// StartCleanupScheduler runs Cleanup immediately and then every interval
// until ctx is cancelled. The returned channel is closed when the
// goroutine exits.
func (d *Database) StartCleanupScheduler(ctx context.Context, config CleanupSchedulerConfig) <-chan struct{} {
	if config.Interval <= 0 {
		config.Interval = DefaultCleanupSchedulerConfig().Interval
	}
	done := make(chan struct{})

	run := func() {
		result, err := d.Cleanup(ctx, config.Retention)
		if err != nil && ctx.Err() == nil {
			d.logger.Warn("history cleanup failed", zap.Error(err))
		} else if result.Deleted > 0 {
			d.logger.Info("history cleanup",
				zap.Int64("deleted", result.Deleted),
				zap.Duration("duration", result.Duration))
		}
		if config.OnCleanup != nil {
			config.OnCleanup(result, err)
		}
	}

	go func() {
		defer close(done)
		run()

		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
	return done
}
