package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// MinSigningKeyLength is the minimum HS256 key size in bytes
	MinSigningKeyLength = 32
	// DefaultTokenTTL is the validity window of bearer tokens
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService issues and verifies HS256 bearer tokens
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenOption customizes a TokenService
type TokenOption func(*TokenService)

// WithTokenTTL overrides the default validity window
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithTokenIssuer sets the iss claim, verified on Validate
func WithTokenIssuer(issuer string) TokenOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests)
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a TokenService. It fails when the signing key
// is shorter than MinSigningKeyLength so misconfiguration surfaces at startup.
func NewTokenService(signingKey []byte, opts ...TokenOption) (*TokenService, error) {
	if len(signingKey) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}

	ts := &TokenService{
		signingKey: append([]byte(nil), signingKey...),
		ttl:        DefaultTokenTTL,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// TTL returns the default validity window
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Generate issues a token for subject with the USER role and default TTL
func (ts *TokenService) Generate(subject string) (string, error) {
	return ts.Issue(subject, RoleUser, ts.ttl)
}

// Issue signs a token for subject carrying role, valid for ttl
func (ts *TokenService) Issue(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty", errors.CategoryBadInput)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserRole: role,
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and verifies a token string, returning its claims
func (ts *TokenService) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, ts.classify(err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token service could not decode claims")
	return nil, ErrBearerMalformed
}

// SubjectOf validates the token and returns its subject
func (ts *TokenService) SubjectOf(tokenString string) (string, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject(), nil
}

func (ts *TokenService) classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrBearerMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		ts.logger.Warn("token rejected", "reason", "unsupported signing method")
		return ErrBearerUnsupported
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBearerBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrBearerExpired
	default:
		return ErrBearerMalformed
	}
}
