package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// VerifyOTPMessage confirms a pending registration
type VerifyOTPMessage struct {
	Email string `json:"email" form:"email"`
	OTP   string `json:"otp" form:"otp"`
}

func (e VerifyOTPMessage) Type() string { return "user.verify_otp" }

func (e VerifyOTPMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.OTP, validation.Required),
	)
}

// VerifyOTP promotes the pending registration for email to a verified user.
// Wrong or expired codes leave the pending record in place.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return s.verifyOTP(ctx, email, code)
	}
}

func (s *Service) verifyOTP(ctx context.Context, email, code string) error {
	record, ok := s.pending.Get(email)
	if !ok {
		return ErrNoPendingRegistration
	}

	if record.OTPCode != code {
		return ErrCodeMismatch
	}

	if record.Expired(s.now(), s.otpTTL) {
		return ErrCodeExpired
	}

	var user *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Users().GetByEmailTx(ctx, tx, email)
		if err == nil {
			return ErrDuplicateEmail
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
		}

		user, err = s.repo.Users().CreateTx(ctx, tx, record.ToUser())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}
		return nil
	})

	if err != nil {
		if goerrors.Is(err, ErrDuplicateEmail) {
			s.pending.CompareAndRemove(email, record)
			return ErrDuplicateEmail
		}
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email verification transaction failed")
	}

	s.pending.CompareAndRemove(email, record)

	s.logger.Info("email verified", "email", email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Email:     email,
		UserID:    user.ID.String(),
	})

	return nil
}
