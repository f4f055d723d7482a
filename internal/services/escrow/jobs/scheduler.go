package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs escrow jobs on fixed intervals.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *zap.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// AddStaleTransferScan schedules job every interval, starting immediately.
// A scan that overruns its interval delays the next one instead of
// overlapping it.
func (s *Scheduler) AddStaleTransferScan(job *StaleTransferScan, every time.Duration) error {
	if job == nil {
		return errors.New("stale transfer scan is required")
	}
	if every <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", every)
	}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), every)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.scheduler.Jobs())))
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
