package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/weddingdesk/internal/services"
	"github.com/charlesng35/weddingdesk/pkg/logger"
)

const (
	defaultReminderSpec  = "@every 1m"
	defaultRetentionSpec = "@daily"
)

// ReminderSweeper fires due reminder jobs.
type ReminderSweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// RetentionPruner removes expired log rows.
type RetentionPruner interface {
	Prune(ctx context.Context) (services.RetentionStats, error)
}

// Runner drives the background jobs: the reminder poll and the retention run.
type Runner struct {
	reminders ReminderSweeper
	retention RetentionPruner
	cron      *cron.Cron
	log       *zap.Logger

	reminderSchedule  string
	retentionSchedule string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	startup sync.WaitGroup
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithReminderSchedule overrides the cron expression for the reminder poll.
func WithReminderSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.reminderSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron expression for log retention.
func WithRetentionSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.retentionSchedule = spec
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// New constructs a Runner. A nil sweeper or pruner disables that job.
func New(reminders ReminderSweeper, retention RetentionPruner, opts ...Option) *Runner {
	r := &Runner{
		reminders:         reminders,
		retention:         retention,
		reminderSchedule:  defaultReminderSpec,
		retentionSchedule: defaultRetentionSpec,
		log:               logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cron == nil {
		r.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return r
}

// Start registers the periodic jobs, launches the cron scheduler and runs the
// startup recovery sweep in the background so a large backlog does not delay
// startup or hold the runner lock. A failed recovery sweep is logged, not
// fatal; the next poll retries it.
func (r *Runner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || (r.reminders == nil && r.retention == nil) {
		return nil
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if r.reminders != nil {
		if _, err := r.cron.AddFunc(r.reminderSchedule, func() { r.sweep(jobCtx, "poll") }); err != nil {
			cancel()
			return err
		}
	}

	if r.retention != nil {
		if _, err := r.cron.AddFunc(r.retentionSchedule, func() { r.prune(jobCtx) }); err != nil {
			cancel()
			return err
		}
	}

	r.cancel = cancel
	r.running = true
	if r.reminders != nil {
		r.startup.Add(1)
		go func() {
			defer r.startup.Done()
			r.sweep(jobCtx, "startup")
		}()
	}
	r.cron.Start()
	r.log.Info("background jobs started",
		zap.Bool("reminders", r.reminders != nil),
		zap.String("reminder_schedule", r.reminderSchedule),
		zap.Bool("retention", r.retention != nil),
		zap.String("retention_schedule", r.retentionSchedule),
	)
	return nil
}

// Stop halts the scheduler. In-flight jobs, the startup sweep included, see a
// cancelled context; the returned context is done once they have returned.
func (r *Runner) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return context.Background()
	}
	r.running = false
	if r.cancel != nil {
		r.cancel()
	}

	cronDone := r.cron.Stop()
	stopped, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		r.startup.Wait()
		done()
	}()
	return stopped
}

// Running reports whether the periodic jobs are active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce executes every configured job sequentially.
func (r *Runner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if r.reminders != nil {
		if _, err := r.reminders.Sweep(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if r.retention != nil {
		if _, err := r.retention.Prune(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *Runner) sweep(ctx context.Context, trigger string) {
	result, err := r.reminders.Sweep(ctx)
	if err != nil {
		r.log.Warn("reminder sweep failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if trigger == "startup" {
		r.log.Info("reminder recovery sweep completed",
			zap.Int("released", result.Released),
			zap.Int("sent", result.Sent),
			zap.Int("retried", result.Retried),
		)
	}
}

func (r *Runner) prune(ctx context.Context) {
	stats, err := r.retention.Prune(ctx)
	if err != nil {
		r.log.Warn("retention run failed", zap.Error(err))
		return
	}
	r.log.Info("retention run completed",
		zap.Int64("email_logs", stats.EmailLogs),
		zap.Int64("status_changes", stats.StatusChanges),
		zap.Int64("reminder_jobs", stats.ReminderJobs),
	)
}
