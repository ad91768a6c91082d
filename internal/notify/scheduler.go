package notify

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seiyelan/raidhelper/pkg/logger"
)

const (
	defaultReminderSpec = "* * * * *"
	defaultFlushSpec    = "@every 5m"
)

// SchedulerOption customises the Scheduler.
type SchedulerOption func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithReminderSpec overrides the cron specification for the reminder sweep.
func WithReminderSpec(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.reminderSpec = spec
		}
	}
}

// WithFlushSpec overrides the cron specification for batch flushing.
func WithFlushSpec(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.flushSpec = spec
		}
	}
}

// Scheduler drives the dispatcher's periodic work: the per-minute reminder
// sweep and the batch flush.
type Scheduler struct {
	dispatcher *Dispatcher
	cron       *cron.Cron
	log        *zap.Logger

	reminderSpec string
	flushSpec    string
}

// NewScheduler constructs a Scheduler around a dispatcher.
func NewScheduler(dispatcher *Dispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		dispatcher:   dispatcher,
		reminderSpec: defaultReminderSpec,
		flushSpec:    defaultFlushSpec,
		log:          logger.WithModule("notify"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the periodic jobs and launches the scheduler.
func (s *Scheduler) Start() error {
	if s.dispatcher == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.reminderSpec, func() {
		if err := s.dispatcher.RemindDue(context.Background()); err != nil {
			s.log.Warn("reminder sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.flushSpec, func() {
		if err := s.dispatcher.Flush(context.Background()); err != nil {
			s.log.Warn("batch flush failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes one reminder sweep and one batch flush sequentially.
// Primarily used in tests and during graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.dispatcher == nil {
		return nil
	}
	var errs error
	if err := s.dispatcher.RemindDue(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.dispatcher.Flush(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
