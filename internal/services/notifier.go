package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/pkg/logger"
	"github.com/charlesng35/weddingdesk/pkg/mail"
	"github.com/charlesng35/weddingdesk/pkg/metrics"
)

const displayDateLayout = "Monday, 2 January 2006"

// Template names under templates/.
const (
	templateOffer                = "offer"
	templateInternalNewInquiry   = "internal_new_inquiry"
	templateConfirmation         = "confirmation"
	templateInternalConfirmation = "internal_confirmation"
	templateReminder             = "reminder"
	templateOfferFollowUp        = "offer_followup"
)

// Notification is one templated message addressed to a single recipient.
type Notification struct {
	EventID   string
	Kind      models.EmailKind
	Template  string
	Recipient string
	ReplyTo   string
	Data      any
}

// emailData is the value every template renders against.
type emailData struct {
	Event        *models.Event
	FullName     string
	WeddingDate  string
	AcceptURL    string
	DeclineURL   string
	CateringTeam string
	TestMode     bool
	Resend       bool
}

// NotifierOption customises a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierBaseURL sets the public URL used to build accept and decline links.
func WithNotifierBaseURL(baseURL string) NotifierOption {
	return func(n *Notifier) {
		n.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithNotifierSender sets the From address.
func WithNotifierSender(sender string) NotifierOption {
	return func(n *Notifier) {
		n.sender = strings.TrimSpace(sender)
	}
}

// WithNotifierCateringTeam sets the internal recipient for notices and reminders.
func WithNotifierCateringTeam(address string) NotifierOption {
	return func(n *Notifier) {
		n.team = strings.TrimSpace(address)
	}
}

// WithNotifierTestMode routes couple-facing mail to the catering team.
func WithNotifierTestMode(enabled bool) NotifierOption {
	return func(n *Notifier) {
		n.testMode = enabled
	}
}

// WithNotifierLogger overrides the logger.
func WithNotifierLogger(log *zap.Logger) NotifierOption {
	return func(n *Notifier) {
		if log != nil {
			n.log = log
		}
	}
}

// Notifier renders templates, hands them to the configured transport and
// records every attempt in email_logs.
type Notifier struct {
	db       *gorm.DB
	mailer   mail.Mailer
	renderer *templateRenderer
	baseURL  string
	sender   string
	team     string
	testMode bool
	log      *zap.Logger
}

// NewNotifier constructs a Notifier. A nil mailer falls back to logging messages.
func NewNotifier(db *gorm.DB, mailer mail.Mailer, opts ...NotifierOption) (*Notifier, error) {
	if db == nil {
		return nil, errors.New("notifier: db is required")
	}
	if mailer == nil {
		mailer = mail.NewLogMailer(nil)
	}

	n := &Notifier{
		db:       db,
		mailer:   mailer,
		renderer: newTemplateRenderer(),
		baseURL:  "http://localhost:8000",
		log:      logger.WithModule("notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.team == "" {
		n.team = n.sender
	}
	return n, nil
}

// Send renders and delivers a single notification. Transport failures are
// returned as *DeliveryError.
func (n *Notifier) Send(ctx context.Context, note Notification) error {
	ctx = ensureContext(ctx)

	recipient := strings.TrimSpace(note.Recipient)
	if recipient == "" {
		return &DeliveryError{Kind: note.Kind, Err: errors.New("recipient is empty")}
	}

	rendered, err := n.renderer.Render(note.Template, note.Data)
	if err != nil {
		return fmt.Errorf("notifier: %s: %w", note.Template, err)
	}

	msg := mail.Message{
		From:    n.sender,
		To:      []string{recipient},
		ReplyTo: note.ReplyTo,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}

	sendErr := n.mailer.Send(ctx, msg)
	n.recordAttempt(ctx, note, recipient, rendered.Subject, sendErr)

	if sendErr != nil {
		n.log.Warn("email delivery failed",
			zap.String("event_id", note.EventID),
			zap.String("kind", string(note.Kind)),
			zap.String("provider", n.mailer.Name()),
			zap.Error(sendErr),
		)
		return &DeliveryError{Kind: note.Kind, Recipient: recipient, Err: sendErr}
	}

	n.log.Info("email sent",
		zap.String("event_id", note.EventID),
		zap.String("kind", string(note.Kind)),
		zap.String("provider", n.mailer.Name()),
	)
	return nil
}

// SendOffer delivers the offer with accept and decline links to the couple.
// resend marks an admin-triggered repeat.
func (n *Notifier) SendOffer(ctx context.Context, event *models.Event, resend bool) error {
	kind := models.EmailKindOffer
	if resend {
		kind = models.EmailKindResendOffer
	}
	data := n.data(event)
	data.Resend = resend
	return n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      kind,
		Template:  templateOffer,
		Recipient: n.coupleRecipient(event),
		ReplyTo:   n.team,
		Data:      data,
	})
}

// SendNewInquiryNotice tells the catering team about a fresh registration.
func (n *Notifier) SendNewInquiryNotice(ctx context.Context, event *models.Event) error {
	return n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      models.EmailKindInternalNewInquiry,
		Template:  templateInternalNewInquiry,
		Recipient: n.team,
		ReplyTo:   event.Email,
		Data:      n.data(event),
	})
}

// SendConfirmations sends the couple confirmation and the internal copy.
// Both are attempted; failures are combined.
func (n *Notifier) SendConfirmations(ctx context.Context, event *models.Event) error {
	data := n.data(event)
	var errs error
	errs = multierr.Append(errs, n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      models.EmailKindConfirmation,
		Template:  templateConfirmation,
		Recipient: n.coupleRecipient(event),
		ReplyTo:   n.team,
		Data:      data,
	}))
	errs = multierr.Append(errs, n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      models.EmailKindInternalConfirmation,
		Template:  templateInternalConfirmation,
		Recipient: n.team,
		ReplyTo:   event.Email,
		Data:      data,
	}))
	return errs
}

// SendReminder sends the internal pre-wedding reminder.
func (n *Notifier) SendReminder(ctx context.Context, event *models.Event) error {
	return n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      models.EmailKindReminder,
		Template:  templateReminder,
		Recipient: n.team,
		Data:      n.data(event),
	})
}

// SendOfferFollowUp nudges a couple who has not answered the offer yet. kind
// separates scheduled follow-ups from ones an admin triggered by hand.
func (n *Notifier) SendOfferFollowUp(ctx context.Context, event *models.Event, kind models.EmailKind) error {
	return n.Send(ctx, Notification{
		EventID:   event.ID,
		Kind:      kind,
		Template:  templateOfferFollowUp,
		Recipient: n.coupleRecipient(event),
		ReplyTo:   n.team,
		Data:      n.data(event),
	})
}

// AcceptURL builds the public accept link for token.
func (n *Notifier) AcceptURL(token string) string {
	return n.baseURL + "/accept?token=" + url.QueryEscape(token)
}

// DeclineURL builds the public decline link for token.
func (n *Notifier) DeclineURL(token string) string {
	return n.baseURL + "/decline?token=" + url.QueryEscape(token)
}

func (n *Notifier) coupleRecipient(event *models.Event) string {
	if n.testMode {
		return n.team
	}
	return event.Email
}

func (n *Notifier) data(event *models.Event) emailData {
	return emailData{
		Event:        event,
		FullName:     event.FullName(),
		WeddingDate:  event.WeddingDay().Format(displayDateLayout),
		AcceptURL:    n.AcceptURL(event.AcceptToken),
		DeclineURL:   n.DeclineURL(event.DeclineToken),
		CateringTeam: n.team,
		TestMode:     n.testMode,
	}
}

func (n *Notifier) recordAttempt(ctx context.Context, note Notification, recipient, subject string, sendErr error) {
	status := models.EmailStatusSent
	errText := ""
	if sendErr != nil {
		status = models.EmailStatusFailed
		errText = sendErr.Error()
	}
	metrics.EmailsSent.WithLabelValues(string(note.Kind), status).Inc()

	entry := models.EmailLog{
		EventID:   note.EventID,
		Kind:      note.Kind,
		Recipient: truncate(recipient, 255),
		Subject:   truncate(subject, 255),
		Provider:  n.mailer.Name(),
		Status:    status,
		Error:     errText,
	}
	if err := n.db.WithContext(ctx).Create(&entry).Error; err != nil {
		n.log.Warn("failed to record email log",
			zap.String("event_id", note.EventID),
			zap.String("kind", string(note.Kind)),
			zap.Error(err),
		)
	}
}
