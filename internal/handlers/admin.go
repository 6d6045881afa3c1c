package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/internal/services"
	"github.com/charlesng35/weddingdesk/pkg/response"
)

// AdminHandler exposes inquiry lookup and the manual actions the catering
// team takes on an inquiry.
type AdminHandler struct {
	events   *services.EventStore
	workflow *services.Workflow
}

// NewAdminHandler constructs the admin API handler.
func NewAdminHandler(events *services.EventStore, workflow *services.Workflow) *AdminHandler {
	return &AdminHandler{events: events, workflow: workflow}
}

type listEventsQuery struct {
	Status  string `form:"status" json:"status" validate:"omitempty,oneof=pending accepted"`
	Query   string `form:"q" json:"q" validate:"max=200"`
	Page    int    `form:"page" json:"page" validate:"gte=0"`
	PerPage int    `form:"per_page" json:"per_page" validate:"gte=0,lte=200"`
}

// List handles GET /admin/api/events.
func (h *AdminHandler) List(c *gin.Context) {
	var query listEventsQuery
	if !bindAndValidateQuery(c, &query) {
		return
	}

	filter := services.EventFilter{
		Status:  models.EventStatus(query.Status),
		Query:   query.Query,
		Page:    query.Page,
		PerPage: query.PerPage,
	}
	events, total, err := h.events.List(requestContext(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	page, perPage := query.Page, query.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = services.DefaultPageSize
	}

	items := make([]EventSummary, 0, len(events))
	for i := range events {
		items = append(items, summarise(&events[i]))
	}
	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(page, perPage, total))
}

// Detail handles GET /admin/api/events/:id.
func (h *AdminHandler) Detail(c *gin.Context) {
	detail, err := h.events.Detail(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"event":          summarise(&detail.Event),
		"offer_sent_at":  detail.Event.OfferSentAt,
		"reminder_job":   detail.ReminderJob,
		"follow_ups":     detail.FollowUps,
		"status_changes": detail.StatusChanges,
	})
}

// EmailLogs handles GET /admin/api/events/:id/email-logs.
func (h *AdminHandler) EmailLogs(c *gin.Context) {
	logs, err := h.events.EmailLogs(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, logs)
}

type manualSendResponse struct {
	Event   EventSummary `json:"event"`
	Sent    bool         `json:"sent"`
	Skipped bool         `json:"skipped"`
}

// ResendOffer handles POST /admin/api/events/:id/resend-offer.
func (h *AdminHandler) ResendOffer(c *gin.Context) {
	result, err := h.workflow.ResendOffer(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeManualSend(c, result)
}

// SendReminderNow handles POST /admin/api/events/:id/send-reminder-now.
func (h *AdminHandler) SendReminderNow(c *gin.Context) {
	result, err := h.workflow.SendReminderNow(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeManualSend(c, result)
}

// Accept handles POST /admin/api/events/:id/accept.
func (h *AdminHandler) Accept(c *gin.Context) {
	result, err := h.workflow.AcceptEvent(requestContext(c), strings.TrimSpace(c.Param("id")), actorFromRequest(c, models.ChangeSourceAdmin))
	if err != nil {
		writeError(c, err)
		return
	}
	writeAcceptResult(c, result)
}

// Decline handles POST /admin/api/events/:id/decline.
func (h *AdminHandler) Decline(c *gin.Context) {
	event, err := h.workflow.DeclineEvent(requestContext(c), strings.TrimSpace(c.Param("id")), actorFromRequest(c, models.ChangeSourceAdmin))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, declineResponse{ID: event.ID, Status: event.Status, Deleted: true})
}

func writeManualSend(c *gin.Context, result *services.ManualSendResult) {
	response.Success(c, http.StatusOK, manualSendResponse{
		Event:   summarise(result.Event),
		Sent:    !result.Skipped,
		Skipped: result.Skipped,
	})
}
