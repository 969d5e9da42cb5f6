package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const bearerPrefix = "Bearer "

// Authenticate verifies a bearer token and loads its verified owner.
// The value may carry the "Bearer " prefix.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during authentication",
		)
	default:
	}

	claims, err := s.tokens.Validate(StripBearer(bearer))
	if err != nil {
		return nil, err
	}

	return s.UserFromClaims(ctx, claims)
}

// UserFromClaims loads the verified user named by already verified claims
func (s *Service) UserFromClaims(ctx context.Context, claims AuthClaims) (*User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, claims.Subject())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	return user, nil
}

// StripBearer removes an optional "Bearer " prefix
func StripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(value[len(bearerPrefix):])
	}
	return value
}
