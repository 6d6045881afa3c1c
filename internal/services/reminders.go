package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/weddingdesk/internal/database"
	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/pkg/logger"
	"github.com/charlesng35/weddingdesk/pkg/metrics"
)

const (
	defaultReminderLeadDays    = 2
	defaultReminderBatchSize   = 50
	defaultReminderMaxAttempts = 5
	defaultReminderLease       = 5 * time.Minute
	defaultReminderRetryDelay  = time.Minute
	defaultReminderRetryMax    = time.Hour
)

// Outcomes of a single reminder job execution.
const (
	ReminderOutcomeSent      = "sent"
	ReminderOutcomeSkipped   = "skipped"
	ReminderOutcomeCancelled = "cancelled"
	ReminderOutcomeRetry     = "retry"
	ReminderOutcomeFailed    = "failed"
)

// FireAt returns the instant a reminder should fire: midnight at the start of
// the civil day leadDays before weddingDate in loc. A nil loc means UTC.
func FireAt(weddingDate time.Time, leadDays int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := weddingDate.Date()
	return time.Date(y, m, d-leadDays, 0, 0, 0, 0, loc).UTC()
}

// SweepResult summarises one pass over the reminder queue.
type SweepResult struct {
	Released  int
	Claimed   int
	Sent      int
	Skipped   int
	Cancelled int
	Retried   int
	Failed    int
}

func (r *SweepResult) add(outcome string) {
	switch outcome {
	case ReminderOutcomeSent:
		r.Sent++
	case ReminderOutcomeSkipped:
		r.Skipped++
	case ReminderOutcomeCancelled:
		r.Cancelled++
	case ReminderOutcomeRetry:
		r.Retried++
	case ReminderOutcomeFailed:
		r.Failed++
	}
}

// ReminderOption customises a ReminderScheduler.
type ReminderOption func(*ReminderScheduler)

// WithReminderLocation sets the timezone whose civil calendar drives fire times.
func WithReminderLocation(loc *time.Location) ReminderOption {
	return func(s *ReminderScheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithReminderLeadDays sets how many days before the wedding the reminder fires.
func WithReminderLeadDays(days int) ReminderOption {
	return func(s *ReminderScheduler) {
		if days >= 0 {
			s.leadDays = days
		}
	}
}

// WithReminderFollowUps enables the offer follow-ups sent to couples who have
// not answered, first and second days after the offer went out. Zero disables
// that follow-up.
func WithReminderFollowUps(first, second int) ReminderOption {
	return func(s *ReminderScheduler) {
		s.followUps = map[models.ReminderKind]int{}
		if first > 0 {
			s.followUps[models.ReminderKindFollowUpFirst] = first
		}
		if second > 0 {
			s.followUps[models.ReminderKindFollowUpSecond] = second
		}
	}
}

// WithReminderBatchSize caps the jobs claimed per sweep.
func WithReminderBatchSize(size int) ReminderOption {
	return func(s *ReminderScheduler) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithReminderMaxAttempts bounds delivery attempts before a job is marked failed.
func WithReminderMaxAttempts(attempts int) ReminderOption {
	return func(s *ReminderScheduler) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// WithReminderLease sets how long a running claim is honoured before a sweep releases it.
func WithReminderLease(lease time.Duration) ReminderOption {
	return func(s *ReminderScheduler) {
		if lease > 0 {
			s.lease = lease
		}
	}
}

// WithReminderRetry configures the exponential redelivery delay.
func WithReminderRetry(initial, max time.Duration) ReminderOption {
	return func(s *ReminderScheduler) {
		if initial > 0 {
			s.retryDelay = initial
		}
		if max > 0 {
			s.retryMax = max
		}
	}
}

// WithReminderClock injects a custom clock primarily for testing.
func WithReminderClock(clock func() time.Time) ReminderOption {
	return func(s *ReminderScheduler) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ReminderScheduler persists one-shot reminder jobs and fires them when due.
// Jobs live in the same database as events so they survive restarts.
//
// Delivery is at most once per job even when sweeps overlap: a sweep claims a
// job under a fresh token, then stamps dispatched_at conditionally before
// handing the message to the transport. A later sweep that re-claims the job
// after a lease expiry sees the stamp and settles the job without sending.
type ReminderScheduler struct {
	db       *gorm.DB
	events   *EventStore
	notifier *Notifier
	log      *zap.Logger
	now      func() time.Time

	loc         *time.Location
	leadDays    int
	followUps   map[models.ReminderKind]int
	batchSize   int
	maxAttempts int
	lease       time.Duration
	retryDelay  time.Duration
	retryMax    time.Duration
}

// NewReminderScheduler constructs a ReminderScheduler.
func NewReminderScheduler(db *gorm.DB, events *EventStore, notifier *Notifier, opts ...ReminderOption) (*ReminderScheduler, error) {
	if db == nil {
		return nil, errors.New("reminder scheduler: db is required")
	}
	if events == nil {
		return nil, errors.New("reminder scheduler: event store is required")
	}
	if notifier == nil {
		return nil, errors.New("reminder scheduler: notifier is required")
	}

	s := &ReminderScheduler{
		db:          db,
		events:      events,
		notifier:    notifier,
		log:         logger.WithModule("reminders"),
		now:         time.Now,
		loc:         time.UTC,
		leadDays:    defaultReminderLeadDays,
		batchSize:   defaultReminderBatchSize,
		maxAttempts: defaultReminderMaxAttempts,
		lease:       defaultReminderLease,
		retryDelay:  defaultReminderRetryDelay,
		retryMax:    defaultReminderRetryMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FireAt computes the reminder instant for an event's wedding date.
func (s *ReminderScheduler) FireAt(weddingDate time.Time) time.Time {
	return FireAt(weddingDate, s.leadDays, s.loc)
}

// Schedule records the wedding reminder job for eventID using tx when given.
// It is idempotent per event: an existing job is returned unchanged.
func (s *ReminderScheduler) Schedule(ctx context.Context, tx *gorm.DB, eventID string, fireAt time.Time) (*models.ReminderJob, error) {
	return s.enqueue(ensureContext(ctx), tx, eventID, models.ReminderKindWedding, fireAt)
}

// ScheduleFollowUps records the enabled offer follow-ups for a pending event,
// counted from offerSentAt. Existing jobs are kept, so a resent offer does not
// move follow-ups that are already queued.
func (s *ReminderScheduler) ScheduleFollowUps(ctx context.Context, tx *gorm.DB, eventID string, offerSentAt time.Time) ([]models.ReminderJob, error) {
	ctx = ensureContext(ctx)

	var jobs []models.ReminderJob
	for _, kind := range []models.ReminderKind{models.ReminderKindFollowUpFirst, models.ReminderKindFollowUpSecond} {
		days, ok := s.followUps[kind]
		if !ok {
			continue
		}
		job, err := s.enqueue(ctx, tx, eventID, kind, offerSentAt.Add(time.Duration(days)*24*time.Hour))
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// CancelFollowUps cancels follow-ups that have not been picked up yet. It runs
// inside the transaction that moves the event out of pending.
func (s *ReminderScheduler) CancelFollowUps(ctx context.Context, tx *gorm.DB, eventID string) (int, error) {
	ctx = ensureContext(ctx)
	if tx == nil {
		tx = s.db
	}
	now := s.now().UTC()

	result := tx.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("event_id = ? AND kind IN ? AND status = ?", eventID,
			[]models.ReminderKind{models.ReminderKindFollowUpFirst, models.ReminderKindFollowUpSecond},
			models.ReminderJobPending).
		Updates(map[string]any{
			"status":       models.ReminderJobCancelled,
			"last_error":   "inquiry no longer pending",
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("reminder scheduler: cancel follow-ups: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *ReminderScheduler) enqueue(ctx context.Context, tx *gorm.DB, eventID string, kind models.ReminderKind, fireAt time.Time) (*models.ReminderJob, error) {
	if tx == nil {
		tx = s.db
	}

	job := models.ReminderJob{
		EventID:       eventID,
		Kind:          kind,
		FireAt:        fireAt.UTC(),
		Status:        models.ReminderJobPending,
		NextAttemptAt: fireAt.UTC(),
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}, {Name: "kind"}}, DoNothing: true}).
		Create(&job)
	if result.Error != nil {
		return nil, fmt.Errorf("reminder scheduler: schedule %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 1 {
		return &job, nil
	}

	var existing models.ReminderJob
	if err := tx.WithContext(ctx).Where("event_id = ? AND kind = ?", eventID, kind).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("reminder scheduler: load existing job: %w", err)
	}
	return &existing, nil
}

// Sweep releases stale claims and fires every due job. It is the recovery
// pass run at startup as well as the periodic poll, so reminders whose fire
// time passed while the process was down are still delivered.
func (s *ReminderScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	var result SweepResult

	released, err := s.releaseStale(ctx, now)
	if err != nil {
		return result, err
	}
	result.Released = released

	var due []models.ReminderJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.ReminderJobPending, now).
		Order("next_attempt_at ASC").
		Limit(s.batchSize).
		Find(&due).Error; err != nil {
		return result, fmt.Errorf("reminder scheduler: load due jobs: %w", err)
	}

	var errs error
	for i := range due {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		job := due[i]
		claimed, err := s.claim(ctx, &job)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !claimed {
			continue
		}
		result.Claimed++

		outcome, err := s.fire(ctx, &job)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if outcome != "" {
			result.add(outcome)
			metrics.RemindersFired.WithLabelValues(outcome).Inc()
		}
	}

	if pending, err := s.PendingCount(ctx); err == nil {
		metrics.PendingReminders.Set(float64(pending))
	}
	if err := database.RecordTimestamp(ctx, s.db, models.SettingLastReminderSweep, now); err != nil {
		s.log.Warn("failed to record sweep timestamp", zap.Error(err))
	}

	if result.Claimed > 0 || result.Released > 0 {
		s.log.Info("reminder sweep completed",
			zap.Int("released", result.Released),
			zap.Int("claimed", result.Claimed),
			zap.Int("sent", result.Sent),
			zap.Int("skipped", result.Skipped),
			zap.Int("cancelled", result.Cancelled),
			zap.Int("retried", result.Retried),
			zap.Int("failed", result.Failed),
		)
	}
	return result, errs
}

// PendingCount returns the number of jobs not yet fired.
func (s *ReminderScheduler) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.ReminderJob{}).
		Where("status IN ?", []models.ReminderJobStatus{models.ReminderJobPending, models.ReminderJobRunning}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("reminder scheduler: count pending: %w", err)
	}
	return count, nil
}

// LastSweep returns when the queue was last swept, or the zero time.
func (s *ReminderScheduler) LastSweep(ctx context.Context) (time.Time, error) {
	return database.GetTimestamp(ensureContext(ctx), s.db, models.SettingLastReminderSweep)
}

// releaseStale returns expired running claims to the queue. dispatched_at is
// left alone so a message already handed to the transport stays sent.
func (s *ReminderScheduler) releaseStale(ctx context.Context, now time.Time) (int, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("status = ? AND claimed_at < ?", models.ReminderJobRunning, now.Add(-s.lease)).
		Updates(map[string]any{
			"status":      models.ReminderJobPending,
			"claim_token": "",
			"claimed_at":  nil,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("reminder scheduler: release stale claims: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *ReminderScheduler) claim(ctx context.Context, job *models.ReminderJob) (bool, error) {
	now := s.now().UTC()
	token := uuid.NewString()

	result := s.db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("id = ? AND status = ?", job.ID, models.ReminderJobPending).
		Updates(map[string]any{
			"status":      models.ReminderJobRunning,
			"claim_token": token,
			"claimed_at":  now,
			"attempts":    gorm.Expr("attempts + 1"),
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("reminder scheduler: claim job: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return false, nil
	}
	job.Status = models.ReminderJobRunning
	job.ClaimToken = token
	job.ClaimedAt = &now
	job.Attempts++
	return true, nil
}

func (s *ReminderScheduler) fire(ctx context.Context, job *models.ReminderJob) (string, error) {
	event, err := s.events.Get(ctx, job.EventID)
	if errors.Is(err, ErrNotFound) {
		s.log.Info("reminder cancelled, event no longer exists",
			zap.String("event_id", job.EventID),
			zap.String("kind", string(job.Kind)),
		)
		return s.settle(ctx, job, models.ReminderJobCancelled, ReminderOutcomeCancelled, "event no longer exists")
	}
	if err != nil {
		return s.retry(ctx, job, err)
	}

	if reason := obsoleteReason(job, event); reason != "" {
		return s.settle(ctx, job, models.ReminderJobCancelled, ReminderOutcomeCancelled, reason)
	}
	if job.Kind == models.ReminderKindWedding && event.ReminderSent {
		return s.settle(ctx, job, models.ReminderJobDone, ReminderOutcomeSkipped, "")
	}

	dispatched, err := s.dispatch(ctx, job)
	if err != nil {
		return s.retry(ctx, job, err)
	}
	if !dispatched {
		return s.settleDispatched(ctx, job, event)
	}

	if err := s.send(ctx, job, event); err != nil {
		if undoErr := s.undispatch(ctx, job); undoErr != nil {
			s.log.Warn("failed to clear dispatch marker", zap.String("job_id", job.ID), zap.Error(undoErr))
		}
		return s.retry(ctx, job, err)
	}
	return s.complete(ctx, job, event)
}

func obsoleteReason(job *models.ReminderJob, event *models.Event) string {
	switch {
	case job.Kind.IsFollowUp():
		if !event.IsPending() {
			return "inquiry no longer pending"
		}
	case job.Kind == models.ReminderKindWedding:
		if event.Status != models.EventStatusAccepted {
			return "event is not accepted"
		}
	default:
		return fmt.Sprintf("unknown reminder kind %q", job.Kind)
	}
	return ""
}

func (s *ReminderScheduler) send(ctx context.Context, job *models.ReminderJob, event *models.Event) error {
	if job.Kind.IsFollowUp() {
		return s.notifier.SendOfferFollowUp(ctx, event, models.EmailKindOfferFollowUp)
	}
	return s.notifier.SendReminder(ctx, event)
}

// dispatch stamps dispatched_at while this sweep still holds the claim. It
// reports false when the stamp was already present or the claim was lost.
func (s *ReminderScheduler) dispatch(ctx context.Context, job *models.ReminderJob) (bool, error) {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("id = ? AND claim_token = ? AND dispatched_at IS NULL", job.ID, job.ClaimToken).
		Updates(map[string]any{"dispatched_at": now, "updated_at": now})
	if result.Error != nil {
		return false, fmt.Errorf("reminder scheduler: dispatch job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 1 {
		job.DispatchedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *ReminderScheduler) undispatch(ctx context.Context, job *models.ReminderJob) error {
	if err := s.db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("id = ? AND claim_token = ?", job.ID, job.ClaimToken).
		Updates(map[string]any{"dispatched_at": nil, "updated_at": s.now().UTC()}).Error; err != nil {
		return fmt.Errorf("reminder scheduler: clear dispatch %s: %w", job.ID, err)
	}
	job.DispatchedAt = nil
	return nil
}

// settleDispatched handles a job an earlier claim already handed to the
// transport: the job is completed without sending again.
func (s *ReminderScheduler) settleDispatched(ctx context.Context, job *models.ReminderJob, event *models.Event) (string, error) {
	var stored models.ReminderJob
	if err := s.db.WithContext(ctx).First(&stored, "id = ?", job.ID).Error; err != nil {
		return "", fmt.Errorf("reminder scheduler: reload job %s: %w", job.ID, err)
	}
	if stored.ClaimToken != job.ClaimToken {
		s.log.Warn("reminder claim lost before dispatch", zap.String("job_id", job.ID))
		return "", nil
	}

	s.log.Info("reminder already dispatched by an earlier claim, not sending again",
		zap.String("event_id", job.EventID),
		zap.String("kind", string(job.Kind)),
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if job.Kind == models.ReminderKindWedding {
			if _, err := s.events.WithTx(tx).MarkReminderSent(ctx, event.ID); err != nil {
				return err
			}
		}
		_, err := s.finish(ctx, tx, job, models.ReminderJobDone, "")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("reminder scheduler: settle dispatched job %s: %w", job.ID, err)
	}
	return ReminderOutcomeSkipped, nil
}

// complete records a successful delivery. The reminder counts as sent even
// when the claim was lost meanwhile; the audit row and event flag still land.
func (s *ReminderScheduler) complete(ctx context.Context, job *models.ReminderJob, event *models.Event) (string, error) {
	action := "offer_follow_up_sent"
	if job.Kind == models.ReminderKindWedding {
		action = "reminder_sent"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if job.Kind == models.ReminderKindWedding {
			if _, err := s.events.WithTx(tx).MarkReminderSent(ctx, event.ID); err != nil {
				return err
			}
		}
		if err := recordStatusChange(ctx, tx, statusChangeEntry{
			EventID:   event.ID,
			OldStatus: event.Status,
			NewStatus: event.Status,
			Actor:     SchedulerActor,
			Metadata:  map[string]any{"action": action, "kind": job.Kind, "job_id": job.ID, "attempts": job.Attempts},
		}); err != nil {
			return err
		}
		_, err := s.finish(ctx, tx, job, models.ReminderJobDone, "")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("reminder scheduler: complete job %s: %w", job.ID, err)
	}
	return ReminderOutcomeSent, nil
}

func (s *ReminderScheduler) settle(ctx context.Context, job *models.ReminderJob, status models.ReminderJobStatus, outcome, reason string) (string, error) {
	held, err := s.finish(ctx, s.db, job, status, reason)
	if err != nil {
		return "", err
	}
	if !held {
		return "", nil
	}
	return outcome, nil
}

// finish settles a job this sweep still holds. It reports false when another
// sweep has taken the claim over.
func (s *ReminderScheduler) finish(ctx context.Context, db *gorm.DB, job *models.ReminderJob, status models.ReminderJobStatus, lastError string) (bool, error) {
	now := s.now().UTC()
	result := db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("id = ? AND claim_token = ? AND status = ?", job.ID, job.ClaimToken, models.ReminderJobRunning).
		Updates(map[string]any{
			"status":       status,
			"last_error":   lastError,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("reminder scheduler: finish job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		s.log.Warn("reminder claim lost before completion",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
		)
		return false, nil
	}
	job.Status = status
	job.CompletedAt = &now
	return true, nil
}

// retry puts a failed job back in the queue, or marks it failed once the
// attempt budget is spent. The event itself is never touched.
func (s *ReminderScheduler) retry(ctx context.Context, job *models.ReminderJob, cause error) (string, error) {
	if job.Attempts >= s.maxAttempts {
		s.log.Error("reminder abandoned after max attempts",
			zap.String("event_id", job.EventID),
			zap.String("kind", string(job.Kind)),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause),
		)
		return s.settle(ctx, job, models.ReminderJobFailed, ReminderOutcomeFailed, cause.Error())
	}

	now := s.now().UTC()
	next := now.Add(s.backoffDelay(job.Attempts))
	result := s.db.WithContext(ctx).
		Model(&models.ReminderJob{}).
		Where("id = ? AND claim_token = ? AND status = ?", job.ID, job.ClaimToken, models.ReminderJobRunning).
		Updates(map[string]any{
			"status":          models.ReminderJobPending,
			"next_attempt_at": next,
			"last_error":      cause.Error(),
			"claim_token":     "",
			"claimed_at":      nil,
			"updated_at":      now,
		})
	if result.Error != nil {
		return "", fmt.Errorf("reminder scheduler: reschedule job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		s.log.Warn("reminder claim lost before reschedule", zap.String("job_id", job.ID), zap.Error(cause))
		return "", nil
	}

	s.log.Warn("reminder delivery failed, will retry",
		zap.String("event_id", job.EventID),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempts", job.Attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
	job.Status = models.ReminderJobPending
	job.NextAttemptAt = next
	return ReminderOutcomeRetry, nil
}

// backoffDelay returns the wait before the attempt following attempts.
func (s *ReminderScheduler) backoffDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryDelay
	b.MaxInterval = s.retryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	delay := s.retryDelay
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
