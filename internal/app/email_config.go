package app

import (
	"strings"

	"github.com/charlesng35/weddingdesk/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  strings.TrimSpace(c.SMTP.Host) != "",
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.Sender,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// SESSettings converts EmailConfig to the SES transport settings.
func (c EmailConfig) SESSettings() mail.SESSettings {
	return mail.SESSettings{
		Region:          c.SES.Region,
		AccessKeyID:     c.SES.AccessKeyID,
		SecretAccessKey: c.SES.SecretAccessKey,
		Endpoint:        c.SES.Endpoint,
		From:            c.Sender,
		Timeout:         c.SMTP.Timeout,
	}
}

// MailSettings selects the transport. Without an explicit provider SMTP is
// used when a host is configured, otherwise messages are only logged.
func (c EmailConfig) MailSettings() mail.Settings {
	return mail.Settings{
		Provider: c.Provider,
		SMTP:     c.SMTPSettings(),
		SES:      c.SESSettings(),
	}
}
