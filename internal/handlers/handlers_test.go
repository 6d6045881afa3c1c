package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/weddingdesk/internal/database/testutil"
	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/internal/services"
	"github.com/charlesng35/weddingdesk/pkg/mail"
	"github.com/charlesng35/weddingdesk/pkg/response"
)

type stubMailer struct {
	mu   sync.Mutex
	fail func(mail.Message) bool
	sent []mail.Message
}

func (m *stubMailer) Name() string { return "stub" }

func (m *stubMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil && m.fail(msg) {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	db     *gorm.DB
	mailer *stubMailer
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &stubMailer{}

	events, err := services.NewEventStore(db)
	require.NoError(t, err)
	notifier, err := services.NewNotifier(db, mailer,
		services.WithNotifierBaseURL("https://book.catering.test"),
		services.WithNotifierSender("offers@catering.test"),
		services.WithNotifierCateringTeam("team@catering.test"),
	)
	require.NoError(t, err)
	reminders, err := services.NewReminderScheduler(db, events, notifier)
	require.NoError(t, err)
	workflow, err := services.NewWorkflow(db, events, notifier, reminders)
	require.NoError(t, err)

	public := NewEventHandler(workflow)
	admin := NewAdminHandler(events, workflow)

	r := gin.New()
	r.POST("/register", public.Register)
	r.GET("/accept", public.Accept)
	r.GET("/decline", public.Decline)
	r.GET("/admin/api/events", admin.List)
	r.GET("/admin/api/events/:id", admin.Detail)
	r.GET("/admin/api/events/:id/email-logs", admin.EmailLogs)
	r.POST("/admin/api/events/:id/resend-offer", admin.ResendOffer)
	r.POST("/admin/api/events/:id/send-reminder-now", admin.SendReminderNow)
	r.POST("/admin/api/events/:id/accept", admin.Accept)
	r.POST("/admin/api/events/:id/decline", admin.Decline)

	return &testEnv{db: db, mailer: mailer, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return w, payload
}

func registrationBody() map[string]any {
	return map[string]any{
		"first_name":   "Ana",
		"last_name":    "Horvat",
		"email":        "ana@example.com",
		"phone":        "+385 91 123 4567",
		"wedding_date": "2026-12-19",
		"venue":        "Villa Dalmacija",
		"guest_count":  120,
	}
}

func (e *testEnv) register(t *testing.T) models.Event {
	t.Helper()
	w, _ := e.do(t, http.MethodPost, "/register", registrationBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event models.Event
	require.NoError(t, e.db.Order("created_at DESC").First(&event).Error)
	return event
}

func dataMap(t *testing.T, payload response.Response) map[string]any {
	t.Helper()
	data, ok := payload.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", payload.Data)
	return data
}

func TestRegisterCreatesPendingEvent(t *testing.T) {
	env := newTestEnv(t)

	w, payload := env.do(t, http.MethodPost, "/register", registrationBody())
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, payload.Success)

	data := dataMap(t, payload)
	require.Equal(t, "pending", data["status"])
	require.Equal(t, "2026-12-19", data["wedding_date"])
	require.Equal(t, true, data["offer_sent"])
	require.NotContains(t, w.Body.String(), "token")

	var stored models.Event
	require.NoError(t, env.db.First(&stored, "id = ?", data["id"]).Error)
	require.Equal(t, "Villa Dalmacija", stored.Venue)
	require.NotEmpty(t, stored.AcceptToken)

	var changes []models.StatusChange
	require.NoError(t, env.db.Find(&changes, "event_id = ?", stored.ID).Error)
	require.Len(t, changes, 1)
	require.Equal(t, "handler-test", changes[0].UserAgent)
}

func TestRegisterValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	body := registrationBody()
	body["guest_count"] = 0
	body["wedding_date"] = "19/12/2026"
	body["email"] = "not-an-email"

	w, payload := env.do(t, http.MethodPost, "/register", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, payload.Success)
	require.Equal(t, "VALIDATION_FAILED", payload.Error.Code)
	require.Contains(t, payload.Error.Details, "guest_count")
	require.Contains(t, payload.Error.Details, "wedding_date")
	require.Contains(t, payload.Error.Details, "email")

	var count int64
	require.NoError(t, env.db.Model(&models.Event{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRegisterMalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestRegisterOfferFailureIsDegradedSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = func(msg mail.Message) bool { return msg.To[0] == "ana@example.com" }

	w, payload := env.do(t, http.MethodPost, "/register", registrationBody())
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, payload.Success)
	require.NotEmpty(t, payload.Warnings)
	require.Equal(t, false, dataMap(t, payload)["offer_sent"])

	var count int64
	require.NoError(t, env.db.Model(&models.Event{}).Where("status = ?", "pending").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	event := env.register(t)

	w, payload := env.do(t, http.MethodGet, "/accept?token="+event.AcceptToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, payload)
	require.Equal(t, true, data["accepted"])
	require.Equal(t, "accepted", data["status"])
	require.Equal(t, true, data["confirmation_sent"])
	require.Equal(t, "2026-12-17T00:00:00Z", data["reminder_at"])

	w, payload = env.do(t, http.MethodGet, "/accept?token="+event.AcceptToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "CONFLICT", payload.Error.Code)

	w, _ = env.do(t, http.MethodGet, "/decline?token="+event.DeclineToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var jobs int64
	require.NoError(t, env.db.Model(&models.ReminderJob{}).Count(&jobs).Error)
	require.EqualValues(t, 1, jobs)
}

func TestAcceptConfirmationFailureKeepsAcceptance(t *testing.T) {
	env := newTestEnv(t)
	event := env.register(t)
	env.mailer.fail = func(mail.Message) bool { return true }

	w, payload := env.do(t, http.MethodGet, "/accept?token="+event.AcceptToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, payload.Warnings)
	require.Equal(t, false, dataMap(t, payload)["confirmation_sent"])

	var stored models.Event
	require.NoError(t, env.db.First(&stored, "id = ?", event.ID).Error)
	require.True(t, stored.Accepted)
}

func TestDeclineFlow(t *testing.T) {
	env := newTestEnv(t)
	event := env.register(t)

	w, payload := env.do(t, http.MethodGet, "/decline?token="+event.DeclineToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["deleted"])

	w, payload = env.do(t, http.MethodGet, "/accept?token="+event.AcceptToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)

	w, _ = env.do(t, http.MethodGet, "/decline?token="+event.DeclineToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenEndpointsRejectMissingOrUnknownTokens(t *testing.T) {
	env := newTestEnv(t)
	event := env.register(t)

	w, _ := env.do(t, http.MethodGet, "/accept", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodGet, "/accept?token=unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// A decline token cannot be used to accept.
	w, _ = env.do(t, http.MethodGet, "/accept?token="+event.DeclineToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminListDetailAndLogs(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t)
	env.register(t)

	w, _ := env.do(t, http.MethodGet, "/accept?token="+first.AcceptToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, payload := env.do(t, http.MethodGet, "/admin/api/events?status=accepted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := payload.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, 1, payload.Meta.Total)
	require.Equal(t, 25, payload.Meta.PerPage)

	w, payload = env.do(t, http.MethodGet, "/admin/api/events?q=horvat&per_page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, payload.Meta.Total)
	require.Equal(t, 2, payload.Meta.TotalPages)

	w, payload = env.do(t, http.MethodGet, "/admin/api/events?status=deleted", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, payload.Error.Details, "status")

	w, payload = env.do(t, http.MethodGet, "/admin/api/events/"+first.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := dataMap(t, payload)
	require.NotNil(t, detail["reminder_job"])
	require.Len(t, detail["status_changes"], 2)

	w, payload = env.do(t, http.MethodGet, "/admin/api/events/"+first.ID+"/email-logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs, ok := payload.Data.([]any)
	require.True(t, ok)
	require.Len(t, logs, 4)

	w, _ = env.do(t, http.MethodGet, "/admin/api/events/not-a-uuid", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminResendOffer(t *testing.T) {
	env := newTestEnv(t)
	pending := env.register(t)
	accepted := env.register(t)
	unreachable := env.register(t)

	w, _ := env.do(t, http.MethodGet, "/accept?token="+accepted.AcceptToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	before := len(env.mailer.sent)
	w, payload := env.do(t, http.MethodPost, "/admin/api/events/"+pending.ID+"/resend-offer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["sent"])
	require.Len(t, env.mailer.sent, before+1)
	require.True(t, strings.HasPrefix(env.mailer.sent[before].Subject, "Reminder: "))

	// A double click within the dedupe window sends nothing.
	w, payload = env.do(t, http.MethodPost, "/admin/api/events/"+pending.ID+"/resend-offer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["skipped"])
	require.Len(t, env.mailer.sent, before+1)

	w, payload = env.do(t, http.MethodPost, "/admin/api/events/"+accepted.ID+"/resend-offer", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "CONFLICT", payload.Error.Code)

	env.mailer.fail = func(mail.Message) bool { return true }
	w, payload = env.do(t, http.MethodPost, "/admin/api/events/"+unreachable.ID+"/resend-offer", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "DELIVERY_FAILED", payload.Error.Code)
}

func TestAdminSendReminderNow(t *testing.T) {
	env := newTestEnv(t)
	event := env.register(t)

	before := len(env.mailer.sent)
	w, payload := env.do(t, http.MethodPost, "/admin/api/events/"+event.ID+"/send-reminder-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["sent"])
	require.Len(t, env.mailer.sent, before+1)
	require.Equal(t, []string{"ana@example.com"}, env.mailer.sent[before].To)

	var logs int64
	require.NoError(t, env.db.Model(&models.EmailLog{}).
		Where("event_id = ? AND kind = ?", event.ID, models.EmailKindManualReminder).Count(&logs).Error)
	require.EqualValues(t, 1, logs)

	w, payload = env.do(t, http.MethodPost, "/admin/api/events/"+event.ID+"/send-reminder-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["skipped"])

	w, _ = env.do(t, http.MethodPost, "/admin/api/events/not-a-uuid/send-reminder-now", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAcceptAndDecline(t *testing.T) {
	env := newTestEnv(t)
	accepted := env.register(t)
	declined := env.register(t)

	w, payload := env.do(t, http.MethodPost, "/admin/api/events/"+accepted.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, payload)
	require.Equal(t, "accepted", data["status"])
	require.Equal(t, "2026-12-17T00:00:00Z", data["reminder_at"])

	var change models.StatusChange
	require.NoError(t, env.db.Where("event_id = ? AND new_status = ?", accepted.ID, models.EventStatusAccepted).First(&change).Error)
	require.Equal(t, models.ChangeSourceAdmin, change.Source)
	require.Equal(t, "handler-test", change.UserAgent)

	w, _ = env.do(t, http.MethodPost, "/admin/api/events/"+accepted.ID+"/accept", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	w, _ = env.do(t, http.MethodPost, "/admin/api/events/"+accepted.ID+"/decline", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w, payload = env.do(t, http.MethodPost, "/admin/api/events/"+declined.ID+"/decline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, dataMap(t, payload)["deleted"])

	w, _ = env.do(t, http.MethodGet, "/decline?token="+declined.DeclineToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w, _ = env.do(t, http.MethodPost, "/admin/api/events/"+declined.ID+"/accept", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTranslateErrorFallsBackToInternal(t *testing.T) {
	appErr := translateError(errors.New("disk on fire"))
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)

	appErr = translateError(services.ErrNotPending)
	require.Equal(t, http.StatusConflict, appErr.StatusCode)
}
