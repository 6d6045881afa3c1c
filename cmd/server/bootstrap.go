package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/api"
	"github.com/charlesng35/weddingdesk/internal/app"
	"github.com/charlesng35/weddingdesk/internal/database"
	"github.com/charlesng35/weddingdesk/internal/monitoring"
	"github.com/charlesng35/weddingdesk/internal/monitoring/checks"
	"github.com/charlesng35/weddingdesk/internal/scheduler"
	"github.com/charlesng35/weddingdesk/internal/services"
	"github.com/charlesng35/weddingdesk/pkg/logger"
	"github.com/charlesng35/weddingdesk/pkg/mail"
)

const healthProbeTimeout = 3 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Events    *services.EventStore
	Notifier  *services.Notifier
	Reminders *services.ReminderScheduler
	Workflow  *services.Workflow
	Retention *services.RetentionService
	Scheduler *scheduler.Runner
	Health    *monitoring.HealthManager
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.New(cfg.Email.MailSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mail transport: %w", err)
	}
	log.Info("mail transport ready", zap.String("provider", mailer.Name()), zap.Bool("test_mode", cfg.Email.TestMode))

	loc, ok := cfg.Reminders.Location()
	if !ok {
		log.Warn("unknown reminder timezone, falling back to UTC", zap.String("timezone", cfg.Reminders.Timezone))
	}

	stack.Events, err = services.NewEventStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise event store: %w", err)
	}

	stack.Notifier, err = services.NewNotifier(stack.DB, mailer,
		services.WithNotifierBaseURL(cfg.Server.BaseURL),
		services.WithNotifierSender(cfg.Email.Sender),
		services.WithNotifierCateringTeam(cfg.Email.CateringTeam),
		services.WithNotifierTestMode(cfg.Email.TestMode),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notifier: %w", err)
	}

	stack.Reminders, err = services.NewReminderScheduler(stack.DB, stack.Events, stack.Notifier, cfg.Reminders.ReminderSettings(loc)...)
	if err != nil {
		return nil, fmt.Errorf("initialise reminder scheduler: %w", err)
	}

	stack.Workflow, err = services.NewWorkflow(stack.DB, stack.Events, stack.Notifier, stack.Reminders,
		services.WithManualSendWindow(cfg.Admin.ManualSendWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise workflow: %w", err)
	}

	stack.Retention, err = services.NewRetentionService(stack.DB, services.WithRetentionDays(cfg.Retention.Days))
	if err != nil {
		return nil, fmt.Errorf("initialise retention: %w", err)
	}

	// Nil interfaces, not typed nil pointers, switch a job off.
	var sweeper scheduler.ReminderSweeper
	if cfg.Reminders.Enabled {
		sweeper = stack.Reminders
	} else {
		log.Warn("reminder poller disabled; accepted events still record reminder jobs")
	}
	var pruner scheduler.RetentionPruner
	if cfg.Retention.Enabled {
		pruner = stack.Retention
	}

	stack.Scheduler = scheduler.New(sweeper, pruner,
		scheduler.WithReminderSchedule(cfg.Reminders.Schedule),
		scheduler.WithRetentionSchedule(cfg.Retention.Schedule),
	)
	if err := stack.Scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("start background jobs: %w", err)
	}

	stack.Health = buildHealthManager(cfg, stack)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:   cfg,
		Events:   stack.Events,
		Workflow: stack.Workflow,
		Health:   stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func buildHealthManager(cfg *app.Config, stack *runtimeStack) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager(healthProbeTimeout)
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(stack.DB))

	var state checks.SchedulerState
	var sweeps checks.SweepClock
	if cfg.Reminders.Enabled {
		state = stack.Scheduler
		sweeps = stack.Reminders
	}
	manager.RegisterReadiness(checks.Reminders(state, sweeps, sweepMaxAge(cfg.Reminders.Schedule), nil))
	return manager
}

// sweepMaxAge tolerates three missed polls before the reminder probe degrades.
func sweepMaxAge(spec string) time.Duration {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return 0
	}
	first := schedule.Next(time.Now())
	interval := schedule.Next(first).Sub(first)
	if interval <= 0 {
		return 0
	}
	return 3 * interval
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		done := s.Scheduler.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			log.Warn("background jobs did not finish before shutdown deadline")
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg, err := cfg.Database.DatabaseSettings()
	if err != nil {
		return nil, fmt.Errorf("database settings: %w", err)
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateSchema(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
