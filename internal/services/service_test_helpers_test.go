package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/weddingdesk/internal/database/testutil"
	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/pkg/mail"
)

const (
	testSender = "offers@catering.test"
	testTeam   = "team@catering.test"
	testBase   = "https://book.catering.test"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failWhen func(mail.Message) error
}

func (m *fakeMailer) Name() string { return "fake" }

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWhen != nil {
		if err := m.failWhen(msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) setFailure(fn func(mail.Message) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWhen = fn
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	db        *gorm.DB
	clock     *testClock
	mailer    *fakeMailer
	events    *EventStore
	notifier  *Notifier
	reminders *ReminderScheduler
	workflow  *Workflow
}

func newHarness(t *testing.T, reminderOpts ...ReminderOption) *harness {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mailer := &fakeMailer{}

	events, err := NewEventStore(db, WithEventStoreClock(clock.Now))
	require.NoError(t, err)

	notifier, err := NewNotifier(db, mailer,
		WithNotifierBaseURL(testBase+"/"),
		WithNotifierSender(testSender),
		WithNotifierCateringTeam(testTeam),
	)
	require.NoError(t, err)

	opts := append([]ReminderOption{WithReminderClock(clock.Now)}, reminderOpts...)
	reminders, err := NewReminderScheduler(db, events, notifier, opts...)
	require.NoError(t, err)

	workflow, err := NewWorkflow(db, events, notifier, reminders)
	require.NoError(t, err)

	return &harness{
		db:        db,
		clock:     clock,
		mailer:    mailer,
		events:    events,
		notifier:  notifier,
		reminders: reminders,
		workflow:  workflow,
	}
}

func validInput() EventInput {
	return EventInput{
		FirstName:   "Ana",
		LastName:    "Horvat",
		Email:       "Ana.Horvat@Example.com ",
		Phone:       "+385 91 123 4567",
		WeddingDate: "2026-06-15",
		Venue:       "Villa Dalmacija",
		GuestCount:  120,
		Message:     "Outdoor ceremony, bar until 2am.",
	}
}

var publicActor = Actor{Source: models.ChangeSourcePublic, ClientIP: "203.0.113.7", UserAgent: "test-agent"}

func (h *harness) register(t *testing.T) *models.Event {
	t.Helper()
	result, err := h.workflow.Register(context.Background(), validInput(), publicActor)
	require.NoError(t, err)
	return result.Event
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := h.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
