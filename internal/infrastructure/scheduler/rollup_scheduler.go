package scheduler

import (
	"context"
	"sync"
	"time"

	quotaapp "github.com/autoflow/backend/internal/application/quota"
	"go.uber.org/zap"
)

// RollupScheduler periodically folds real-time counters into the
// durable usage ledger and hourly ledger rows into daily rows
type RollupScheduler struct {
	aggregator *quotaapp.Aggregator
	logger     *zap.Logger
	config     RollupSchedulerConfig
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
}

// RollupSchedulerConfig holds configuration for the rollup scheduler
type RollupSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// HourlyInterval is how often the hourly rollup fires
	HourlyInterval time.Duration

	// DailyHour is the hour (0-23) when the daily rollup runs
	DailyHour int

	// JobTimeout is the maximum time for a single rollup run
	JobTimeout time.Duration
}

// DefaultRollupSchedulerConfig returns default configuration
func DefaultRollupSchedulerConfig() RollupSchedulerConfig {
	return RollupSchedulerConfig{
		Enabled:        true,
		HourlyInterval: time.Hour,
		DailyHour:      2, // 2 AM - fold yesterday's hourly rows
		JobTimeout:     10 * time.Minute,
	}
}

// NewRollupScheduler creates a new rollup scheduler
func NewRollupScheduler(
	aggregator *quotaapp.Aggregator,
	logger *zap.Logger,
	config RollupSchedulerConfig,
) *RollupScheduler {
	return &RollupScheduler{
		aggregator: aggregator,
		logger:     logger,
		config:     config,
	}
}

// Start starts the rollup scheduler
func (s *RollupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Rollup scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runHourlyRollups(ctx)
	go s.runDailyRollups(ctx)

	s.logger.Info("Rollup scheduler started",
		zap.Duration("hourly_interval", s.config.HourlyInterval),
		zap.Int("daily_hour", s.config.DailyHour),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *RollupScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Rollup scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Rollup scheduler stop timed out")
		return ctx.Err()
	}
}

// runHourlyRollups folds the previous hour's counters into hourly
// ledger rows on a fixed interval
func (s *RollupScheduler) runHourlyRollups(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HourlyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Hourly rollup loop stopping")
			return
		case <-ticker.C:
			s.executeHourlyRollup(ctx)
		}
	}
}

// runDailyRollups folds hourly ledger rows into daily rows once per day
// at the configured hour
func (s *RollupScheduler) runDailyRollups(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := time.Now()
		nextRun := time.Date(now.Year(), now.Month(), now.Day(), s.config.DailyHour, 0, 0, 0, now.Location())
		if now.After(nextRun) {
			// Already past today's run time, schedule for tomorrow
			nextRun = nextRun.Add(24 * time.Hour)
		}
		delay := time.Until(nextRun)

		s.logger.Info("Daily usage rollup scheduled",
			zap.Time("next_run", nextRun),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			s.logger.Debug("Daily rollup loop stopping")
			return
		case <-time.After(delay):
			s.executeDailyRollup(ctx)
		}
	}
}

// executeHourlyRollup runs a single hourly rollup pass
func (s *RollupScheduler) executeHourlyRollup(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	written, err := s.aggregator.AggregateHourly(jobCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Hourly usage rollup failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Hourly usage rollup completed",
		zap.Duration("duration", duration),
		zap.Int("rows_written", written),
	)
}

// executeDailyRollup runs a single daily rollup pass
func (s *RollupScheduler) executeDailyRollup(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	written, err := s.aggregator.AggregateDaily(jobCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Daily usage rollup failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Daily usage rollup completed",
		zap.Duration("duration", duration),
		zap.Int("rows_written", written),
	)
}

// TriggerHourlyRollup triggers an immediate hourly rollup run
func (s *RollupScheduler) TriggerHourlyRollup(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate hourly usage rollup")

	go func() {
		defer s.wg.Done()
		s.executeHourlyRollup(ctx)
	}()

	return nil
}

// TriggerDailyRollup triggers an immediate daily rollup run
func (s *RollupScheduler) TriggerDailyRollup(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate daily usage rollup")

	go func() {
		defer s.wg.Done()
		s.executeDailyRollup(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *RollupScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
