// Package mailer delivers notification emails.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGrid returns a SendGrid mailer.  fromName defaults to TutorConnect.
func NewSendGrid(apiKey, fromEmail, fromName string, logger *zap.Logger) *SendGrid {
	if fromName == "" {
		fromName = "TutorConnect"
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
		logger: logger,
	}
}

// Send delivers a single message with a plain-text and an HTML part.
func (s *SendGrid) Send(ctx context.Context, toAddress, toName, subject, body string) error {
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail(toName, toAddress), body, renderHTML(body))
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	s.logger.Debug("email sent", zap.String("to", toAddress), zap.Int("status", resp.StatusCode))
	return nil
}

// Log is the development mailer used when no API key is configured; it
// writes each message to the logger instead of sending it.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a logging mailer.
func NewLog(logger *zap.Logger) *Log { return &Log{logger: logger} }

// Send logs the message and never fails.
func (l *Log) Send(_ context.Context, toAddress, toName, subject, body string) error {
	l.logger.Info("email (not sent, no SENDGRID_API_KEY)",
		zap.String("to", toAddress), zap.String("to_name", toName),
		zap.String("subject", subject), zap.String("body", body))
	return nil
}

func renderHTML(body string) string {
	paragraphs := strings.Split(html.EscapeString(body), "\n")
	return "<p>" + strings.Join(paragraphs, "</p><p>") + "</p>"
}
