package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"rentflow-backend/internal/logger"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridSender struct {
	client    sendGridClient
	fromEmail string
	fromName  string
}

// NewSendGridSender returns an EmailSender backed by the SendGrid v3 API.
func NewSendGridSender(apiKey, fromEmail, fromName string) EmailSender {
	return newSendGridSender(sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func newSendGridSender(client sendGridClient, fromEmail, fromName string) *sendGridSender {
	return &sendGridSender{client: client, fromEmail: fromEmail, fromName: fromName}
}

func (s *sendGridSender) Send(ctx context.Context, to, toName, subject, plainText string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, plainTextToHTML(plainText))

	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
		return err
	}

	logger.ExternalServiceResult("sendgrid", "send", nil, "to", to, "status", response.StatusCode)
	return nil
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpSender struct {
	dialer   mailDialer
	from     string
	fromName string
}

// NewSMTPSender returns an EmailSender that relays through an SMTP server.
func NewSMTPSender(host string, port int, username, password, from, fromName string) EmailSender {
	return &smtpSender{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: fromName,
	}
}

func (s *smtpSender) Send(ctx context.Context, to, toName, subject, plainText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetAddressHeader("To", to, toName)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainText)
	m.AddAlternative("text/html", plainTextToHTML(plainText))

	logger.ExternalServiceCall("smtp", "send", "to", to, "subject", subject)
	if err := s.dialer.DialAndSend(m); err != nil {
		logger.ExternalServiceResult("smtp", "send", err, "to", to)
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	logger.ExternalServiceResult("smtp", "send", nil, "to", to)
	return nil
}

func plainTextToHTML(text string) string {
	return "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"
}
