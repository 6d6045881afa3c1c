package mail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/weddingdesk/pkg/logger"
)

// logMailer writes messages to the structured log instead of delivering them.
// It is the transport used when no SMTP or SES configuration is present.
type logMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a Mailer that logs rendered messages. A nil logger uses
// the global logger under the "mail" module.
func NewLogMailer(log *zap.Logger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) Name() string { return ProviderLog }

func (m *logMailer) Send(_ context.Context, msg Message) error {
	log := m.log
	if log == nil {
		log = logger.WithModule("mail")
	}
	log.Info("email not sent, no transport configured",
		zap.String("from", msg.From),
		zap.String("to", strings.Join(uniqueAddresses(msg.To), ", ")),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
