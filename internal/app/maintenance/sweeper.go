// Package maintenance schedules the background sweeps that keep school
// applications and cached counters tidy.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
)

const (
	defaultSchedule = "@hourly"

	JobExpiry     = "expiry"
	JobReminders  = "reminders"
	JobCachePurge = "cache_purge"
)

// Workflow is the part of the registration service driven by the sweeper.
type Workflow interface {
	ExpireStale(ctx context.Context) (int, error)
	SendReminders(ctx context.Context) (int, error)
}

// CachePurger removes expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper runs expiry, reminder and cache purge jobs on a cron schedule.
type Sweeper struct {
	workflow Workflow
	purger   CachePurger
	cron     *cron.Cron
	schedule string
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used to time sweep runs.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification shared by all jobs.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithCachePurger enables the cache purge job.
func WithCachePurger(p CachePurger) Option {
	return func(s *Sweeper) {
		s.purger = p
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSweeper constructs a Sweeper. A nil workflow disables the application jobs.
func NewSweeper(workflow Workflow, opts ...Option) *Sweeper {
	s := &Sweeper{
		workflow: workflow,
		schedule: defaultSchedule,
		now:      time.Now,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the sweep with the scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.workflow == nil && s.purger == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("maintenance sweep finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job in order. A failing job does not stop
// the others; their errors are combined.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.workflow != nil {
		errs = multierr.Append(errs, s.run(ctx, JobExpiry, func(ctx context.Context) (int64, error) {
			n, err := s.workflow.ExpireStale(ctx)
			return int64(n), err
		}))
		errs = multierr.Append(errs, s.run(ctx, JobReminders, func(ctx context.Context) (int64, error) {
			n, err := s.workflow.SendReminders(ctx)
			return int64(n), err
		}))
	}
	if s.purger != nil {
		errs = multierr.Append(errs, s.run(ctx, JobCachePurge, s.purger.PurgeExpired))
	}
	return errs
}

func (s *Sweeper) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) error {
	started := s.now()
	n, err := fn(ctx)
	elapsed := s.now().Sub(started)

	if err != nil {
		metrics.SweepRuns.WithLabelValues(job, "error").Inc()
		s.log.Warn("maintenance job failed",
			zap.String("job", job),
			zap.Int64("affected", n),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", job, err)
	}

	metrics.SweepRuns.WithLabelValues(job, "ok").Inc()
	if n > 0 {
		s.log.Info("maintenance job completed",
			zap.String("job", job),
			zap.Int64("affected", n),
			zap.Duration("duration", elapsed),
		)
	}
	return nil
}
