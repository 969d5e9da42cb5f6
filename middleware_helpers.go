package auth

import (
	"context"

	"github.com/goliatone/go-auth-otp/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter adapts jwtware.AuthClaims to auth.AuthClaims and stores
// them in the standard context for handlers that only see a context.Context.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// TokenValidatorAdapter exposes the token service to jwtware
func TokenValidatorAdapter(tokens *TokenService) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		claims, err := tokens.Validate(raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
