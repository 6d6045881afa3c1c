package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/internal/services"
	appErrors "github.com/charlesng35/weddingdesk/pkg/errors"
	"github.com/charlesng35/weddingdesk/pkg/response"
	appValidator "github.com/charlesng35/weddingdesk/pkg/validator"
)

const confirmationNotSentWarning = "offer accepted but a confirmation email could not be sent; the catering team will follow up"

// EventHandler serves the public inquiry endpoints.
type EventHandler struct {
	workflow *services.Workflow
}

// NewEventHandler constructs the public inquiry handler.
func NewEventHandler(workflow *services.Workflow) *EventHandler {
	return &EventHandler{workflow: workflow}
}

// EventSummary is the public projection of an inquiry. Tokens never leave
// the server except inside the offer email.
type EventSummary struct {
	ID           string             `json:"id"`
	FirstName    string             `json:"first_name"`
	LastName     string             `json:"last_name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone"`
	WeddingDate  string             `json:"wedding_date"`
	Venue        string             `json:"venue"`
	GuestCount   int                `json:"guest_count"`
	Message      string             `json:"message,omitempty"`
	Status       models.EventStatus `json:"status"`
	Accepted     bool               `json:"accepted"`
	AcceptedAt   *time.Time         `json:"accepted_at,omitempty"`
	ReminderSent bool               `json:"reminder_sent"`
	CreatedAt    time.Time          `json:"created_at"`
}

func summarise(event *models.Event) EventSummary {
	return EventSummary{
		ID:           event.ID,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Email:        event.Email,
		Phone:        event.Phone,
		WeddingDate:  event.WeddingDay().Format(appValidator.DateLayout),
		Venue:        event.Venue,
		GuestCount:   event.GuestCount,
		Message:      event.Message,
		Status:       event.Status,
		Accepted:     event.Accepted,
		AcceptedAt:   event.AcceptedAt,
		ReminderSent: event.ReminderSent,
		CreatedAt:    event.CreatedAt,
	}
}

type registrationResponse struct {
	EventSummary
	OfferSent bool `json:"offer_sent"`
}

type acceptResponse struct {
	EventSummary
	ReminderAt       *time.Time `json:"reminder_at,omitempty"`
	ConfirmationSent bool       `json:"confirmation_sent"`
}

type declineResponse struct {
	ID      string             `json:"id"`
	Status  models.EventStatus `json:"status"`
	Deleted bool               `json:"deleted"`
}

// Register handles POST /register.
func (h *EventHandler) Register(c *gin.Context) {
	var input services.EventInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.workflow.Register(requestContext(c), input, actorFromRequest(c, models.ChangeSourcePublic))
	if err != nil {
		writeError(c, err)
		return
	}

	payload := registrationResponse{EventSummary: summarise(result.Event), OfferSent: result.OfferSent}
	if len(result.Warnings) > 0 {
		response.SuccessWithWarnings(c, http.StatusCreated, payload, result.Warnings...)
		return
	}
	response.Success(c, http.StatusCreated, payload)
}

// Accept handles GET /accept?token=.
func (h *EventHandler) Accept(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}

	result, err := h.workflow.Accept(requestContext(c), token, actorFromRequest(c, models.ChangeSourcePublic))
	if err != nil {
		writeError(c, err)
		return
	}
	writeAcceptResult(c, result)
}

func writeAcceptResult(c *gin.Context, result *services.AcceptResult) {
	payload := acceptResponse{
		EventSummary:     summarise(result.Event),
		ConfirmationSent: result.ConfirmationErr == nil,
	}
	if result.ReminderJob != nil {
		fireAt := result.ReminderJob.FireAt
		payload.ReminderAt = &fireAt
	}
	if result.ConfirmationErr != nil {
		response.SuccessWithWarnings(c, http.StatusOK, payload, confirmationNotSentWarning)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// Decline handles GET /decline?token=.
func (h *EventHandler) Decline(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}

	event, err := h.workflow.Decline(requestContext(c), token, actorFromRequest(c, models.ChangeSourcePublic))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, declineResponse{ID: event.ID, Status: event.Status, Deleted: true})
}

func tokenParam(c *gin.Context) (string, bool) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("token is required"))
		return "", false
	}
	return token, true
}
