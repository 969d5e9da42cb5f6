package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogSender prints messages to a writer instead of delivering them.
// Meant for local development, the body is written out in full.
type LogSender struct {
	mu     sync.Mutex
	out    io.Writer
	logger Logger
}

func NewLogSender(logger Logger) *LogSender {
	return &LogSender{out: os.Stdout, logger: logger}
}

// WithWriter redirects printed messages to w
func (s *LogSender) WithWriter(w io.Writer) *LogSender {
	if w != nil {
		s.out = w
	}
	return s
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := checkRecipient(to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.out,
		"====== SENDING EMAIL NOTIFICATION =======\nto: %s\nsubject: %s\n\n%s\n=========================================\n",
		to, subject, body,
	); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("email printed", "to", to, "subject", subject)
	}

	return nil
}
