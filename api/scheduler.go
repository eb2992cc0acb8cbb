/*
scheduler.go - Run retention scheduler

PURPOSE:
  Periodically deletes persisted runs older than the retention window so the
  run store does not grow without bound.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Lists runs and deletes those created before now - MaxAge
  - A run deleted concurrently (ErrRunNotFound) is not an error

CONFIGURATION:
  - MaxAge:        retention window (database.retention, 0 disables)
  - CheckInterval: how often to check (default: 1 hour)

USAGE:
  scheduler := NewRetentionScheduler(runs, 90*24*time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - store/store.go: RunStore.ListRuns, RunStore.DeleteRun
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/hours-engine/store"
	"go.uber.org/zap"
)

// RetentionScheduler prunes old runs.
type RetentionScheduler struct {
	Store         store.RunStore
	MaxAge        time.Duration
	CheckInterval time.Duration

	logger *zap.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a new scheduler.
func NewRetentionScheduler(runs store.RunStore, maxAge time.Duration, logger *zap.Logger) *RetentionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		Store:         runs,
		MaxAge:        maxAge,
		CheckInterval: time.Hour,
		logger:        logger.Named("retention"),
		now:           time.Now,
	}
}

// Start begins the scheduler. It does nothing when MaxAge is not positive.
func (rs *RetentionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.MaxAge <= 0 {
		rs.logger.Info("Retention disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	rs.logger.Info("Started",
		zap.Duration("max_age", rs.MaxAge),
		zap.Duration("check_interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.logger.Info("Stopped")
	}
}

func (rs *RetentionScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.check()

	for {
		select {
		case <-rs.ticker.C:
			rs.check()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RetentionScheduler) check() {
	pruned, err := rs.RunNow(context.Background())
	if err != nil {
		rs.logger.Error("Retention check failed", zap.Error(err))
		return
	}
	if pruned > 0 {
		rs.logger.Info("Pruned old runs", zap.Int("count", pruned))
	}
}

// RunNow deletes every run older than MaxAge and returns how many went.
func (rs *RetentionScheduler) RunNow(ctx context.Context) (int, error) {
	if rs.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := rs.now().Add(-rs.MaxAge)

	runs, err := rs.Store.ListRuns(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, run := range runs {
		if !run.CreatedAt.Before(cutoff) {
			continue
		}
		err := rs.Store.DeleteRun(ctx, run.ID)
		if errors.Is(err, store.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return pruned, err
		}
		rs.logger.Debug("Deleted run", zap.String("run_id", run.ID), zap.Time("created_at", run.CreatedAt))
		pruned++
	}
	return pruned, nil
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RetentionScheduler) NextRunTime() time.Time {
	return rs.now().Add(rs.CheckInterval)
}
