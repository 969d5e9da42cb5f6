package auth

import (
	"context"
	"time"
)

const (
	MessageCodeSent      = "Verification code sent, check your email."
	MessageVerified      = "Account verified successfully."
	MessageLoginSuccess  = "Login successful."
	MessageResetLinkSent = "Password reset link sent."
	MessagePasswordReset = "Password reset successfully."
)

const (
	DefaultOTPTTL   = 10 * time.Minute
	DefaultResetTTL = 30 * time.Minute
	DefaultResetURL = "http://localhost:3000/forgetpassword/changepassword"

	subjectVerification  = "Verification code"
	subjectPasswordReset = "Password reset"
)

// Service orchestrates registration, verification, login and password reset
type Service struct {
	repo     RepositoryManager
	tokens   *TokenService
	mailer   Mailer
	pending  PendingStore
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger

	now           func() time.Time
	otpTTL        time.Duration
	resetTTL      time.Duration
	resetURL      string
	newOTP        func() (string, error)
	newResetToken func() (string, error)
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// NewService wires the orchestrator. The pending table defaults to an
// in memory store and passwords default to bcrypt.
func NewService(repo RepositoryManager, tokens *TokenService, mailer Mailer, opts ...ServiceOption) *Service {
	s := &Service{
		repo:          repo,
		tokens:        tokens,
		mailer:        mailer,
		pending:       NewMemoryPendingStore(),
		hasher:        NewBcryptHasher(0),
		activity:      noopActivitySink{},
		logger:        defLogger{},
		now:           time.Now,
		otpTTL:        DefaultOTPTTL,
		resetTTL:      DefaultResetTTL,
		resetURL:      DefaultResetURL,
		newOTP:        GenerateOTP,
		newResetToken: GenerateResetToken,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// NewServiceFromConfig builds the token service and orchestrator from cfg
func NewServiceFromConfig(cfg Config, repo RepositoryManager, mailer Mailer, logger Logger, opts ...ServiceOption) (*Service, error) {
	tokens, err := NewTokenService([]byte(cfg.GetSigningKey()),
		WithTokenTTL(cfg.GetTokenTTL()),
		WithTokenIssuer(cfg.GetIssuer()),
		WithTokenLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	base := []ServiceOption{
		WithLogger(logger),
		WithHasher(NewBcryptHasher(cfg.GetBcryptCost())),
		WithOTPTTL(cfg.GetOTPTTL()),
		WithResetTTL(cfg.GetResetTTL()),
		WithResetURL(cfg.GetResetURL()),
	}

	return NewService(repo, tokens, mailer, append(base, opts...)...), nil
}

// WithPendingStore replaces the in memory pending table
func WithPendingStore(store PendingStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.pending = store
		}
	}
}

// WithHasher overrides the password hasher
func WithHasher(hasher PasswordHasher) ServiceOption {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithActivitySink sets the sink used to emit audit events
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the logger
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a custom clock
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithResetURL sets the frontend page the reset token is appended to
func WithResetURL(url string) ServiceOption {
	return func(s *Service) {
		if url != "" {
			s.resetURL = url
		}
	}
}

// WithOTPGenerator overrides the verification code source
func WithOTPGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newOTP = fn
		}
	}
}

// WithResetTokenGenerator overrides the reset token source
func WithResetTokenGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newResetToken = fn
		}
	}
}

// Tokens returns the token issuer used by the service
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Pending returns the pending registration table
func (s *Service) Pending() PendingStore {
	return s.pending
}

func (s *Service) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "event", string(event.EventType), "error", err)
	}
}
