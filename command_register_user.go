package auth

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// RegisterUserMessage is the registration request
type RegisterUserMessage struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	Company   string `json:"company" form:"company"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks field lengths and the email format
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(2, 50)),
		validation.Field(&e.LastName, validation.Required, validation.Length(2, 50)),
		validation.Field(&e.Email, validation.Required, validation.Length(0, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 0), passwordBytes),
		validation.Field(&e.Company, validation.Length(0, 100)),
	)
}

// Register starts a registration: it stores a pending record keyed by email
// and mails a verification code. No user exists until VerifyOTP succeeds.
func (s *Service) Register(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return s.register(ctx, event)
	}
}

func (s *Service) register(ctx context.Context, event RegisterUserMessage) error {
	_, err := s.repo.Users().GetByEmail(ctx, event.Email)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	code, err := s.newOTP()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	hash, err := s.hasher.HashPassword(event.Password)
	if err != nil {
		if goerrors.Is(err, ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	s.pending.Put(event.Email, PendingRegistration{
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Email:        event.Email,
		PasswordHash: hash,
		Company:      event.Company,
		OTPCode:      code,
		IssuedAt:     s.now(),
	})

	if err := s.mailer.Send(ctx, event.Email, subjectVerification, s.verificationBody(code)); err != nil {
		s.pending.Remove(event.Email)
		s.logger.Error("verification email failed", "email", event.Email, "error", err)
		return ErrSendFailure
	}

	s.logger.Info("verification code sent", "email", event.Email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistrationStarted,
		Email:     event.Email,
	})

	return nil
}

func (s *Service) verificationBody(code string) string {
	return fmt.Sprintf("Your verification code is: %s\nIt is valid for %d minutes.", code, int(s.otpTTL.Minutes()))
}
