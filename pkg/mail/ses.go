package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const utf8Charset = "UTF-8"

// SESSettings configure delivery through Amazon SES.
type SESSettings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the regional endpoint, useful against local emulators.
	Endpoint string
	From     string
	Timeout  time.Duration
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type sesMailer struct {
	client sesAPI
	from   string
}

// NewSESMailer builds a Mailer that sends through the SES SendEmail API using static credentials.
func NewSESMailer(cfg SESSettings) (Mailer, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("ses: region is required")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, errors.New("ses: access key id and secret access key are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}

	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newSESMailer(client, cfg.From), nil
}

func newSESMailer(client sesAPI, from string) *sesMailer {
	return &sesMailer{client: client, from: strings.TrimSpace(from)}
}

func (m *sesMailer) Name() string { return ProviderSES }

func (m *sesMailer) Send(ctx context.Context, msg Message) error {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return errors.New("ses: at least one recipient is required")
	}

	source := strings.TrimSpace(msg.From)
	if source == "" {
		source = m.from
	}
	if source == "" {
		return errors.New("ses: sender address is required")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(escapeHeader(msg.Subject)),
				Charset: aws.String(utf8Charset),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(msg.Text),
					Charset: aws.String(utf8Charset),
				},
			},
		},
	}
	if msg.HTML != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(msg.HTML),
			Charset: aws.String(utf8Charset),
		}
	}
	if reply := strings.TrimSpace(msg.ReplyTo); reply != "" {
		input.ReplyToAddresses = []string{reply}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses: send email: %w", err)
	}
	return nil
}
