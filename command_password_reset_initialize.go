package auth

import (
	"context"
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// InitializePasswordResetMessage requests a reset link
type InitializePasswordResetMessage struct {
	Email string `json:"email" form:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// RequestPasswordReset persists a single use reset token for email and
// mails the reset link
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return s.requestPasswordReset(ctx, email)
	}
}

func (s *Service) requestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, err := s.newResetToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	now := s.now()
	record := &PasswordResetToken{
		Token:     token,
		Email:     user.Email,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: &now,
	}

	if err := s.repo.ResetTokens().Save(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
	}

	if err := s.mailer.Send(ctx, user.Email, subjectPasswordReset, s.resetBody(token)); err != nil {
		s.logger.Error("password reset email failed", "email", user.Email, "error", err)
		return ErrSendFailure
	}

	s.logger.Info("password reset link sent", "email", user.Email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Email:     user.Email,
		UserID:    user.ID.String(),
	})

	return nil
}

// ResetLink returns the frontend link for token
func (s *Service) ResetLink(token string) string {
	return s.resetURL + "?token=" + url.QueryEscape(token)
}

func (s *Service) resetBody(token string) string {
	return fmt.Sprintf("Follow this link to reset your password:\n%s", s.ResetLink(token))
}
