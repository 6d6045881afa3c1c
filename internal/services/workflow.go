package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/pkg/logger"
	"github.com/charlesng35/weddingdesk/pkg/metrics"
)

// Warning attached to a registration whose offer could not be delivered.
const offerNotSentWarning = "inquiry saved but the offer email could not be sent; the catering team has been notified"

const defaultManualSendWindow = time.Minute

// RegistrationResult is the outcome of Register.
type RegistrationResult struct {
	Event     *models.Event
	OfferSent bool
	Warnings  []string
}

// AcceptResult is the outcome of Accept. ConfirmationErr carries delivery
// failures that did not undo the acceptance.
type AcceptResult struct {
	Event           *models.Event
	ReminderJob     *models.ReminderJob
	ConfirmationErr error
}

// ManualSendResult is the outcome of an admin-triggered email. Skipped is set
// when the same email already went out within the dedupe window.
type ManualSendResult struct {
	Event   *models.Event
	Skipped bool
}

// WorkflowOption customises a Workflow.
type WorkflowOption func(*Workflow)

// WithWorkflowLogger overrides the logger.
func WithWorkflowLogger(log *zap.Logger) WorkflowOption {
	return func(w *Workflow) {
		if log != nil {
			w.log = log
		}
	}
}

// WithManualSendWindow sets how long a successful resend or manual reminder
// suppresses an identical one. Zero disables the check.
func WithManualSendWindow(window time.Duration) WorkflowOption {
	return func(w *Workflow) {
		if window >= 0 {
			w.manualSendWindow = window
		}
	}
}

// WithWorkflowClock injects a custom clock primarily for testing.
func WithWorkflowClock(clock func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if clock != nil {
			w.now = clock
		}
	}
}

// Workflow drives an inquiry through register, accept and decline.
type Workflow struct {
	db        *gorm.DB
	events    *EventStore
	notifier  *Notifier
	reminders *ReminderScheduler
	log       *zap.Logger
	now       func() time.Time

	manualSendWindow time.Duration
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(db *gorm.DB, events *EventStore, notifier *Notifier, reminders *ReminderScheduler, opts ...WorkflowOption) (*Workflow, error) {
	switch {
	case db == nil:
		return nil, errors.New("workflow: db is required")
	case events == nil:
		return nil, errors.New("workflow: event store is required")
	case notifier == nil:
		return nil, errors.New("workflow: notifier is required")
	case reminders == nil:
		return nil, errors.New("workflow: reminder scheduler is required")
	}

	w := &Workflow{
		db:               db,
		events:           events,
		notifier:         notifier,
		reminders:        reminders,
		log:              logger.WithModule("workflow"),
		now:              time.Now,
		manualSendWindow: defaultManualSendWindow,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register stores a new pending inquiry and sends the offer. A failed offer
// does not remove the inquiry; the result reports OfferSent=false instead.
func (w *Workflow) Register(ctx context.Context, in EventInput, actor Actor) (*RegistrationResult, error) {
	ctx = ensureContext(ctx)

	event, err := w.events.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}

	result := &RegistrationResult{Event: event}

	if err := w.notifier.SendNewInquiryNotice(ctx, event); err != nil {
		w.log.Warn("internal inquiry notice failed", zap.String("event_id", event.ID), zap.Error(err))
	}

	if err := w.notifier.SendOffer(ctx, event, false); err != nil {
		w.log.Error("offer delivery failed", zap.String("event_id", event.ID), zap.Error(err))
		result.Warnings = append(result.Warnings, offerNotSentWarning)
		metrics.Registrations.WithLabelValues("failed").Inc()
		return result, nil
	}

	result.OfferSent = true
	w.offerDelivered(ctx, event.ID)
	if refreshed, err := w.events.Get(ctx, event.ID); err == nil {
		result.Event = refreshed
	}

	metrics.Registrations.WithLabelValues("sent").Inc()
	w.log.Info("inquiry registered", zap.String("event_id", event.ID))
	return result, nil
}

// Accept consumes an accept token. The state change, the reminder job and the
// audit row commit together; confirmation emails follow and never roll back
// the acceptance.
func (w *Workflow) Accept(ctx context.Context, token string, actor Actor) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	event, err := w.events.FindByToken(ctx, token, TokenAccept)
	if err != nil {
		w.countTransition("accept", err)
		return nil, err
	}
	return w.accept(ctx, event, actor)
}

// AcceptEvent accepts a pending inquiry by id on behalf of an admin.
func (w *Workflow) AcceptEvent(ctx context.Context, eventID string, actor Actor) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	event, err := w.events.Get(ctx, eventID)
	if err != nil {
		w.countTransition("accept", err)
		return nil, err
	}
	return w.accept(ctx, event, actor)
}

func (w *Workflow) accept(ctx context.Context, event *models.Event, actor Actor) (*AcceptResult, error) {
	if event.Status != models.EventStatusPending {
		w.countTransition("accept", ErrAlreadyAccepted)
		return nil, ErrAlreadyAccepted
	}

	var job *models.ReminderJob
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acceptedAt, err := w.events.WithTx(tx).MarkAccepted(ctx, event.ID)
		if err != nil {
			return err
		}
		event.Status = models.EventStatusAccepted
		event.Accepted = true
		event.AcceptedAt = &acceptedAt

		job, err = w.reminders.Schedule(ctx, tx, event.ID, w.reminders.FireAt(event.WeddingDay()))
		if err != nil {
			return err
		}
		if _, err := w.reminders.CancelFollowUps(ctx, tx, event.ID); err != nil {
			return err
		}

		return recordStatusChange(ctx, tx, statusChangeEntry{
			EventID:   event.ID,
			OldStatus: models.EventStatusPending,
			NewStatus: models.EventStatusAccepted,
			Actor:     actor,
			Metadata:  map[string]any{"action": "accept", "reminder_fire_at": job.FireAt},
		})
	})
	if err != nil {
		w.countTransition("accept", err)
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: accept: %w", err)
	}
	w.countTransition("accept", nil)

	result := &AcceptResult{Event: event, ReminderJob: job}
	if err := w.notifier.SendConfirmations(ctx, event); err != nil {
		result.ConfirmationErr = err
		w.log.Warn("confirmation delivery failed, event stays accepted",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}

	w.log.Info("offer accepted",
		zap.String("event_id", event.ID),
		zap.String("source", actor.Source),
		zap.Time("reminder_fire_at", job.FireAt),
	)
	return result, nil
}

// Decline consumes a decline token and deletes the pending inquiry.
func (w *Workflow) Decline(ctx context.Context, token string, actor Actor) (*models.Event, error) {
	ctx = ensureContext(ctx)

	event, err := w.events.FindByToken(ctx, token, TokenDecline)
	if err != nil {
		w.countTransition("decline", err)
		return nil, err
	}
	return w.decline(ctx, event, actor)
}

// DeclineEvent declines a pending inquiry by id on behalf of an admin.
func (w *Workflow) DeclineEvent(ctx context.Context, eventID string, actor Actor) (*models.Event, error) {
	ctx = ensureContext(ctx)

	event, err := w.events.Get(ctx, eventID)
	if err != nil {
		w.countTransition("decline", err)
		return nil, err
	}
	return w.decline(ctx, event, actor)
}

func (w *Workflow) decline(ctx context.Context, event *models.Event, actor Actor) (*models.Event, error) {
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.events.WithTx(tx).DeleteIfPending(ctx, event.ID); err != nil {
			return err
		}
		if _, err := w.reminders.CancelFollowUps(ctx, tx, event.ID); err != nil {
			return err
		}
		return recordStatusChange(ctx, tx, statusChangeEntry{
			EventID:   event.ID,
			OldStatus: models.EventStatusPending,
			NewStatus: models.EventStatusDeclined,
			Actor:     actor,
			Metadata:  map[string]any{"action": "decline", "email": event.Email},
		})
	})
	if err != nil {
		w.countTransition("decline", err)
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: decline: %w", err)
	}
	w.countTransition("decline", nil)

	event.Status = models.EventStatusDeclined
	w.log.Info("offer declined", zap.String("event_id", event.ID), zap.String("source", actor.Source))
	return event, nil
}

// ResendOffer re-sends the offer for a pending inquiry. A repeat within the
// manual send window is skipped so a double click sends one email.
func (w *Workflow) ResendOffer(ctx context.Context, eventID string) (*ManualSendResult, error) {
	ctx = ensureContext(ctx)

	event, err := w.pendingEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if skip, err := w.sentRecently(ctx, event.ID, models.EmailKindResendOffer); err != nil || skip {
		return &ManualSendResult{Event: event, Skipped: skip}, err
	}

	if err := w.notifier.SendOffer(ctx, event, true); err != nil {
		return nil, err
	}
	w.offerDelivered(ctx, event.ID)

	refreshed, err := w.events.Get(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	return &ManualSendResult{Event: refreshed}, nil
}

// SendReminderNow sends the offer follow-up to a pending couple immediately,
// outside the follow-up schedule. Repeats within the manual send window are
// skipped.
func (w *Workflow) SendReminderNow(ctx context.Context, eventID string) (*ManualSendResult, error) {
	ctx = ensureContext(ctx)

	event, err := w.pendingEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if skip, err := w.sentRecently(ctx, event.ID, models.EmailKindManualReminder); err != nil || skip {
		return &ManualSendResult{Event: event, Skipped: skip}, err
	}

	if err := w.notifier.SendOfferFollowUp(ctx, event, models.EmailKindManualReminder); err != nil {
		return nil, err
	}
	w.log.Info("manual reminder sent", zap.String("event_id", event.ID))
	return &ManualSendResult{Event: event}, nil
}

func (w *Workflow) pendingEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := w.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsPending() {
		return nil, ErrNotPending
	}
	return event, nil
}

// sentRecently reports whether the newest successful email of kind for the
// event is younger than the manual send window.
func (w *Workflow) sentRecently(ctx context.Context, eventID string, kind models.EmailKind) (bool, error) {
	if w.manualSendWindow <= 0 {
		return false, nil
	}

	var last models.EmailLog
	err := w.db.WithContext(ctx).
		Where("event_id = ? AND kind = ? AND status = ?", eventID, kind, models.EmailStatusSent).
		Order("created_at DESC").
		First(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("workflow: load last %s: %w", kind, err)
	}

	if w.now().Sub(last.CreatedAt) < w.manualSendWindow {
		w.log.Info("manual send skipped, sent recently",
			zap.String("event_id", eventID),
			zap.String("kind", string(kind)),
			zap.Time("last_sent_at", last.CreatedAt),
		)
		return true, nil
	}
	return false, nil
}

// offerDelivered stamps offer_sent_at and queues the follow-ups. Both are
// best effort: the offer already reached the couple.
func (w *Workflow) offerDelivered(ctx context.Context, eventID string) {
	sentAt, err := w.events.MarkOfferSent(ctx, eventID)
	if err != nil {
		w.log.Warn("failed to stamp offer_sent_at", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if _, err := w.reminders.ScheduleFollowUps(ctx, nil, eventID, sentAt); err != nil {
		w.log.Warn("failed to schedule offer follow-ups", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (w *Workflow) countTransition(action string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.Transitions.WithLabelValues(action, result).Inc()
}
