package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage sets a new password using a reset token
type FinalizePasswordResetMessage struct {
	Token       string `json:"token" form:"token"`
	NewPassword string `json:"new_password" form:"new_password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.NewPassword, validation.Required, validation.Length(8, 0), passwordBytes),
	)
}

// ResetPassword consumes token and stores the new password hash. The token
// is deleted in the same transaction, so of two concurrent calls with the
// same token at most one succeeds. Expired tokens are left in place.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return s.resetPassword(ctx, token, newPassword)
	}
}

func (s *Service) resetPassword(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		if goerrors.Is(err, ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	var email string

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := s.repo.ResetTokens().FindByTokenTx(ctx, tx, token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset token")
		}

		if reset.Expired(s.now()) {
			return ErrTokenExpired
		}

		user, err := s.repo.Users().GetByEmailTx(ctx, tx, reset.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user for password reset")
		}
		email = user.Email

		deleted, err := s.repo.ResetTokens().DeleteTx(ctx, tx, token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume password reset token")
		}
		if deleted == 0 {
			return ErrInvalidToken
		}

		if err := s.repo.Users().UpdatePasswordTx(ctx, tx, user.Email, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	s.logger.Info("password reset", "email", email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Email:     email,
	})

	return nil
}
