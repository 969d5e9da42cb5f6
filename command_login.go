package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// LoginMessage carries credentials
type LoginMessage struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (e LoginMessage) Type() string { return "user.login" }

func (e LoginMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required),
	)
}

// LoginResult is returned on successful login
type LoginResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Login checks credentials and issues a bearer token. Failures are reported
// in a fixed order: unknown user, unverified account, wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	select {
	case <-ctx.Done():
		return LoginResult{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return s.login(ctx, email, password)
	}
}

func (s *Service) login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.loginFailed(ctx, email, TextCodeUserNotFound)
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.IsVerified {
		s.loginFailed(ctx, email, TextCodeNotVerified)
		return LoginResult{}, ErrNotVerified
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			s.loginFailed(ctx, email, TextCodeWrongPassword)
			return LoginResult{}, ErrWrongPassword
		}
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password")
	}

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token")
	}

	s.logger.Info("login succeeded", "email", email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Email:     email,
		UserID:    user.ID.String(),
	})

	return LoginResult{Message: MessageLoginSuccess, Token: token}, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) {
	s.logger.Warn("login failed", "email", email, "reason", reason)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Email:     email,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}
