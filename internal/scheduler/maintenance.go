// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/bookshelf/internal/logger"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// AuditCleanupEnqueuer hands cleanup work to the task queue.
type AuditCleanupEnqueuer interface {
	EnqueueAuditCleanup(ctx context.Context, retentionDays int) (string, error)
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// MaintenanceScheduler periodically enqueues audit log cleanup.
type MaintenanceScheduler struct {
	enqueuer      AuditCleanupEnqueuer
	schedule      string
	retentionDays int
	log           *logger.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewMaintenanceScheduler creates a scheduler. An empty schedule disables it.
func NewMaintenanceScheduler(enqueuer AuditCleanupEnqueuer, schedule string, retentionDays int, log *logger.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		enqueuer:      enqueuer,
		schedule:      schedule,
		retentionDays: retentionDays,
		log:           logger.OrNop(log).With("component", "scheduler"),
		cron:          cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start registers the cleanup job and starts the cron loop. The scheduler
// stops when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule == "" {
		s.log.Info("maintenance scheduler disabled")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			s.log.Error("failed to enqueue audit cleanup", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.log.Info("maintenance scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
		"next_run", s.cron.Entry(entryID).Next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job to finish and stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.cron.Remove(s.entryID)
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	s.log.Info("maintenance scheduler stopped")
}

// RunNow enqueues a cleanup immediately and returns the task ID.
func (s *MaintenanceScheduler) RunNow(ctx context.Context) (string, error) {
	id, err := s.enqueuer.EnqueueAuditCleanup(ctx, s.retentionDays)
	if err != nil {
		return "", err
	}
	s.log.Debug("audit cleanup enqueued", "task_id", id)
	return id, nil
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the cleanup runs next, or nil when stopped.
func (s *MaintenanceScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}
