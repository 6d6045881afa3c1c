package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names understood by New.
const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
	ProviderLog  = "log"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email. Text is required; HTML is optional and
// sent as an alternative part when present.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the transport in delivery logs.
	Name() string
}

// Settings selects and configures a transport.
type Settings struct {
	// Provider is smtp, ses or log. Empty picks smtp when a host is configured
	// and log otherwise.
	Provider string
	SMTP     SMTPSettings
	SES      SESSettings
}

// New builds the Mailer described by settings.
func New(settings Settings) (Mailer, error) {
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	if provider == "" {
		provider = ProviderLog
		if settings.SMTP.Enabled && strings.TrimSpace(settings.SMTP.Host) != "" {
			provider = ProviderSMTP
		}
	}

	switch provider {
	case ProviderSMTP:
		smtpSettings := settings.SMTP
		smtpSettings.Enabled = true
		return NewSMTPMailer(smtpSettings)
	case ProviderSES:
		return NewSESMailer(settings.SES)
	case ProviderLog:
		return NewLogMailer(nil), nil
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", settings.Provider)
	}
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
