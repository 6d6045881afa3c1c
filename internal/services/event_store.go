package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
	appValidator "github.com/charlesng35/weddingdesk/pkg/validator"
)

const (
	tokenCollisionRetries = 3
	DefaultPageSize       = 25
	MaxPageSize           = 200
)

// EventInput carries the couple-provided registration fields.
type EventInput struct {
	FirstName   string `json:"first_name" validate:"required,max=120"`
	LastName    string `json:"last_name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"required,min=3,max=80"`
	WeddingDate string `json:"wedding_date" validate:"required,isodate"`
	Venue       string `json:"venue" validate:"required,max=255"`
	GuestCount  int    `json:"guest_count" validate:"required,gte=1,lte=10000"`
	Message     string `json:"message" validate:"max=5000"`
}

func (in EventInput) normalised() EventInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.WeddingDate = strings.TrimSpace(in.WeddingDate)
	in.Venue = strings.TrimSpace(in.Venue)
	in.Message = strings.TrimSpace(in.Message)
	return in
}

// EventFilter narrows admin listings.
type EventFilter struct {
	Status  models.EventStatus
	Query   string
	Page    int
	PerPage int
}

// EventDetail bundles an event with its reminder jobs and audit trail.
type EventDetail struct {
	Event         models.Event          `json:"event"`
	ReminderJob   *models.ReminderJob   `json:"reminder_job,omitempty"`
	FollowUps     []models.ReminderJob  `json:"follow_ups"`
	StatusChanges []models.StatusChange `json:"status_changes"`
}

// EventStoreOption customises an EventStore.
type EventStoreOption func(*EventStore)

// WithEventStoreClock injects a custom clock primarily for testing.
func WithEventStoreClock(clock func() time.Time) EventStoreOption {
	return func(s *EventStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithEventStoreTokens overrides the token issuer.
func WithEventStoreTokens(tokens *TokenIssuer) EventStoreOption {
	return func(s *EventStore) {
		if tokens != nil {
			s.tokens = tokens
		}
	}
}

// EventStore persists inquiries and guards their lifecycle transitions with
// conditional updates so concurrent accept and decline calls serialise per row.
type EventStore struct {
	db     *gorm.DB
	tokens *TokenIssuer
	now    func() time.Time
}

// NewEventStore constructs an EventStore.
func NewEventStore(db *gorm.DB, opts ...EventStoreOption) (*EventStore, error) {
	if db == nil {
		return nil, errors.New("event store: db is required")
	}
	store := &EventStore{
		db:     db,
		tokens: NewTokenIssuer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// WithTx returns a copy of the store bound to tx.
func (s *EventStore) WithTx(tx *gorm.DB) *EventStore {
	clone := *s
	clone.db = tx
	return &clone
}

// Create validates the input and inserts a pending event with fresh tokens.
// The creation is recorded in the status change trail within the same transaction.
func (s *EventStore) Create(ctx context.Context, in EventInput, actor Actor) (*models.Event, error) {
	ctx = ensureContext(ctx)
	in = in.normalised()

	if err := appValidator.ValidateStruct(in); err != nil {
		return nil, validationFromValidator(err)
	}
	weddingDate, err := appValidator.ParseDate(in.WeddingDate)
	if err != nil {
		return nil, newValidationError(map[string]string{"wedding_date": "must be a YYYY-MM-DD date"})
	}

	for attempt := 0; attempt < tokenCollisionRetries; attempt++ {
		pair, err := s.tokens.Pair()
		if err != nil {
			return nil, err
		}

		event := &models.Event{
			AcceptToken:  pair.Accept,
			DeclineToken: pair.Decline,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        in.Email,
			Phone:        in.Phone,
			WeddingDate:  datatypes.Date(weddingDate),
			Venue:        in.Venue,
			GuestCount:   in.GuestCount,
			Message:      in.Message,
			Status:       models.EventStatusPending,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(event).Error; err != nil {
				return err
			}
			return recordStatusChange(ctx, tx, statusChangeEntry{
				EventID:   event.ID,
				NewStatus: models.EventStatusPending,
				Actor:     actor,
				Metadata:  map[string]any{"action": "created"},
			})
		})
		if err == nil {
			return event, nil
		}
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("event store: create event: %w", err)
		}
	}

	return nil, errors.New("event store: could not allocate unique tokens")
}

// Get loads an event by id.
func (s *EventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("event store: get event: %w", err)
	}
	return &event, nil
}

// FindByToken resolves a token of the given kind. A decline token whose event
// was already accepted returns the event together with ErrAlreadyAccepted.
func (s *EventStore) FindByToken(ctx context.Context, token string, kind TokenKind) (*models.Event, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}

	var column string
	switch kind {
	case TokenAccept:
		column = "accept_token"
	case TokenDecline:
		column = "decline_token"
	default:
		return nil, fmt.Errorf("event store: unknown token kind %q", kind)
	}

	var event models.Event
	if err := s.db.WithContext(ctx).Where(column+" = ?", token).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("event store: find by token: %w", err)
	}

	if kind == TokenDecline && event.Status == models.EventStatusAccepted {
		return &event, ErrAlreadyAccepted
	}
	return &event, nil
}

// MarkAccepted moves a pending event to accepted. It returns ErrAlreadyAccepted
// when the event is already accepted and ErrNotPending when the row vanished
// underneath the caller.
func (s *EventStore) MarkAccepted(ctx context.Context, id string) (time.Time, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status = ?", id, models.EventStatusPending).
		Updates(map[string]any{
			"status":      models.EventStatusAccepted,
			"accepted":    true,
			"accepted_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return time.Time{}, fmt.Errorf("event store: mark accepted: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return now, nil
	}
	return time.Time{}, s.transitionConflict(ctx, id)
}

// DeleteIfPending removes a pending event. Accepted events are left untouched
// and reported as ErrAlreadyAccepted.
func (s *EventStore) DeleteIfPending(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.EventStatusPending).
		Delete(&models.Event{})
	if result.Error != nil {
		return fmt.Errorf("event store: delete event: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}
	return s.transitionConflict(ctx, id)
}

// MarkReminderSent flips reminder_sent once. It reports false when the flag
// was already set or the event no longer exists.
func (s *EventStore) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Updates(map[string]any{
			"reminder_sent":    true,
			"reminder_sent_at": now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("event store: mark reminder sent: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkOfferSent stamps offer_sent_at after a successful offer delivery and
// returns the stamp.
func (s *EventStore) MarkOfferSent(ctx context.Context, id string) (time.Time, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{"offer_sent_at": now, "updated_at": now}).Error; err != nil {
		return time.Time{}, fmt.Errorf("event store: mark offer sent: %w", err)
	}
	return now, nil
}

// List returns events matching filter ordered newest first, plus the total count.
func (s *EventStore) List(ctx context.Context, filter EventFilter) ([]models.Event, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := normalisePage(filter.Page, filter.PerPage)
	query := s.db.WithContext(ctx).Model(&models.Event{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(venue) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("event store: count events: %w", err)
	}

	var events []models.Event
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("event store: list events: %w", err)
	}
	return events, total, nil
}

// Detail loads an event together with its reminder job and status changes.
func (s *EventStore) Detail(ctx context.Context, id string) (*EventDetail, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &EventDetail{Event: *event}

	var jobs []models.ReminderJob
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", event.ID).
		Order("fire_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("event store: load reminder jobs: %w", err)
	}
	detail.FollowUps = []models.ReminderJob{}
	for i := range jobs {
		if jobs[i].Kind == models.ReminderKindWedding {
			detail.ReminderJob = &jobs[i]
			continue
		}
		detail.FollowUps = append(detail.FollowUps, jobs[i])
	}

	if err := s.db.WithContext(ctx).
		Where("event_id = ?", event.ID).
		Order("created_at ASC").
		Find(&detail.StatusChanges).Error; err != nil {
		return nil, fmt.Errorf("event store: load status changes: %w", err)
	}
	return detail, nil
}

// EmailLogs lists delivery attempts for an event, newest first.
func (s *EventStore) EmailLogs(ctx context.Context, id string) ([]models.EmailLog, error) {
	ctx = ensureContext(ctx)

	var logs []models.EmailLog
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", id).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("event store: list email logs: %w", err)
	}
	return logs, nil
}

func (s *EventStore) transitionConflict(ctx context.Context, id string) error {
	var event models.Event
	err := s.db.WithContext(ctx).Select("id", "status").First(&event, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotPending
	case err != nil:
		return fmt.Errorf("event store: reload event: %w", err)
	case event.Status == models.EventStatusAccepted:
		return ErrAlreadyAccepted
	default:
		return ErrNotPending
	}
}

func normalisePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	return page, perPage
}

func validationFromValidator(err error) error {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) {
		return newValidationError(map[string]string{"payload": err.Error()})
	}
	fields := make(map[string]string, len(failures))
	for _, failure := range failures {
		fields[failure.Field] = failure.Message()
	}
	return newValidationError(fields)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
