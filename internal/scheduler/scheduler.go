package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RunFunc executes one optimization pass. The scheduler owns the timeout.
type RunFunc func(ctx context.Context) error

// Scheduler triggers periodic re-optimization so selected parameters track
// regime changes in recent data. Overlapping runs are skipped, not queued.
type Scheduler struct {
	cron      *cron.Cron
	logger    *logrus.Logger
	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
	inFlight  sync.Mutex
	runTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		logger:     logger,
		jobIDs:     make([]cron.EntryID, 0),
		runTimeout: 4 * time.Hour,
	}
}

// ScheduleOptimization registers a recurring optimization run.
func (s *Scheduler) ScheduleOptimization(cronExpression string, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		if !s.inFlight.TryLock() {
			s.logger.Warn("Skipping scheduled optimization, previous run still in progress")
			return
		}
		defer s.inFlight.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		s.logger.Info("Starting scheduled optimization run")
		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled optimization run failed")
			return
		}
		s.logger.WithField("duration", time.Since(start).String()).Info("Scheduled optimization run completed")
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled optimization job")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}
	return nextRun
}
