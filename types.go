package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger used across the package.
// Args are key/value pairs, never credentials.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers a single plain text email. Implementations
// try once and report failure, they do not retry.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send implements Mailer
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// PendingStore keeps unverified registrations keyed by email.
// Implementations must be safe for concurrent use.
type PendingStore interface {
	Put(email string, record PendingRegistration)
	Get(email string) (PendingRegistration, bool)
	Remove(email string)
	// CompareAndRemove deletes the record for email only if it is still
	// the one issued with record's code and timestamp. It reports whether
	// a record was removed.
	CompareAndRemove(email string, record PendingRegistration) bool
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenTTL() time.Duration
	GetOTPTTL() time.Duration
	GetResetTTL() time.Duration
	GetResetURL() string
	GetBcryptCost() int
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteString(" ")
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}
