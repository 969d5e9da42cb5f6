package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender sends through the SendGrid v3 API
type SendGridSender struct {
	client  *sendgrid.Client
	from    *mail.Email
	sandbox bool
}

func NewSendGridSender(apiKey, from string, sandbox bool) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY environment variable")
	}
	if from == "" {
		return nil, fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return &SendGridSender{
		client:  sendgrid.NewSendClient(apiKey),
		from:    mail.NewEmail("", from),
		sandbox: sandbox,
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, to, subject, body string) error {
	if err := checkRecipient(to); err != nil {
		return err
	}
	message := s.message(to, subject, body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	if resp != nil && resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d", resp.StatusCode)
	}

	return nil
}

func (s *SendGridSender) message(to, subject, body string) *mail.SGMailV3 {
	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), body, htmlContent)

	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		message.MailSettings = ms
	}

	return message
}
