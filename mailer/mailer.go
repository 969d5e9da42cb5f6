package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers a single plain text email. It satisfies auth.Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

const (
	DriverSMTP     = "smtp"
	DriverSendGrid = "sendgrid"
	DriverLog      = "log"
)

// Config selects and configures a Sender
type Config interface {
	GetMailDriver() string
	GetMailFrom() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSendGridAPIKey() string
	GetSendGridSandbox() bool
}

// Logger is the subset of auth.Logger used by LogSender
type Logger interface {
	Info(msg string, args ...any)
}

// New returns the Sender named by cfg.GetMailDriver
func New(cfg Config, logger Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.GetMailDriver())) {
	case DriverSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.GetSMTPHost(),
			Port:     cfg.GetSMTPPort(),
			Username: cfg.GetSMTPUsername(),
			Password: cfg.GetSMTPPassword(),
			From:     cfg.GetMailFrom(),
		})
	case DriverSendGrid:
		return NewSendGridSender(cfg.GetSendGridAPIKey(), cfg.GetMailFrom(), cfg.GetSendGridSandbox())
	case DriverLog, "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.GetMailDriver())
	}
}

func checkRecipient(to string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("no recipient specified")
	}
	return nil
}
