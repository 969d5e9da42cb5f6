package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeSendFailure           = "SEND_FAILURE"
	TextCodeNoPendingRegistration = "NO_PENDING_REGISTRATION"
	TextCodeCodeMismatch          = "CODE_MISMATCH"
	TextCodeCodeExpired           = "CODE_EXPIRED"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeNotVerified           = "NOT_VERIFIED"
	TextCodeWrongPassword         = "WRONG_PASSWORD"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeValidation            = "VALIDATION_ERROR"

	TextCodeBearerBadSignature = "BEARER_BAD_SIGNATURE"
	TextCodeBearerMalformed    = "BEARER_MALFORMED"
	TextCodeBearerExpired      = "BEARER_EXPIRED"
	TextCodeBearerUnsupported  = "BEARER_UNSUPPORTED"
	TextCodeSigningKey         = "SIGNING_KEY_INVALID"
)

// ErrDuplicateEmail is returned when registering an email that already
// belongs to a verified user
var ErrDuplicateEmail = errors.New("email is already in use", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrSendFailure is returned when the mail sender could not deliver a message
var ErrSendFailure = errors.New("failed to send email", errors.CategoryOperation).
	WithTextCode(TextCodeSendFailure).
	WithCode(errors.CodeInternal)

// ErrNoPendingRegistration is returned when verifying an email with no pending registration
var ErrNoPendingRegistration = errors.New("no pending registration for email", errors.CategoryNotFound).
	WithTextCode(TextCodeNoPendingRegistration).
	WithCode(errors.CodeNotFound)

// ErrCodeMismatch is returned when the presented code differs from the issued one
var ErrCodeMismatch = errors.New("verification code is incorrect", errors.CategoryValidation).
	WithTextCode(TextCodeCodeMismatch).
	WithCode(errors.CodeBadRequest)

// ErrCodeExpired is returned when the verification window has elapsed
var ErrCodeExpired = errors.New("verification code has expired", errors.CategoryValidation).
	WithTextCode(TextCodeCodeExpired).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned when no user exists for an email
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrNotVerified is returned on login for users that never confirmed their email
var ErrNotVerified = errors.New("account is not verified", errors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeUnauthorized)

// ErrWrongPassword is returned when the password does not match the stored hash
var ErrWrongPassword = errors.New("password is incorrect", errors.CategoryAuth).
	WithTextCode(TextCodeWrongPassword).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken is returned when a password reset token is unknown or already consumed
var ErrInvalidToken = errors.New("password reset token is invalid", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a password reset token is past its expiration
var ErrTokenExpired = errors.New("password reset token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeBadRequest)

// ErrBearerBadSignature bearer token signature does not verify with our key
var ErrBearerBadSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeBearerBadSignature).
	WithCode(errors.CodeUnauthorized)

// ErrBearerMalformed bearer token could not be decoded
var ErrBearerMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeBearerMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrBearerExpired bearer token is past its expiration
var ErrBearerExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeBearerExpired).
	WithCode(errors.CodeUnauthorized)

// ErrBearerUnsupported bearer token uses an algorithm we do not accept
var ErrBearerUnsupported = errors.New("token is unsupported", errors.CategoryAuth).
	WithTextCode(TextCodeBearerUnsupported).
	WithCode(errors.CodeUnauthorized)

// ErrSigningKeyTooShort is returned at startup when the signing key is missing or short
var ErrSigningKeyTooShort = errors.New("signing key must be at least 32 bytes", errors.CategoryBadInput).
	WithTextCode(TextCodeSigningKey)

var domainErrors = []*errors.Error{
	ErrDuplicateEmail,
	ErrSendFailure,
	ErrNoPendingRegistration,
	ErrCodeMismatch,
	ErrCodeExpired,
	ErrUserNotFound,
	ErrNotVerified,
	ErrWrongPassword,
	ErrInvalidToken,
	ErrTokenExpired,
	ErrBearerBadSignature,
	ErrBearerMalformed,
	ErrBearerExpired,
	ErrBearerUnsupported,
}

// IsDomainError reports whether err belongs to the user facing taxonomy.
// Anything else is an unexpected collaborator failure.
func IsDomainError(err error) bool {
	return DomainError(err) != nil
}

// DomainError returns the taxonomy entry matching err, or nil
func DomainError(err error) *errors.Error {
	if err == nil {
		return nil
	}

	for _, e := range domainErrors {
		if errors.Is(err, e) {
			return e
		}
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category == errors.CategoryValidation && richErr.TextCode == TextCodeValidation {
		return richErr
	}

	return nil
}

// TextCode returns the text code of a taxonomy error or an empty string
func TextCode(err error) string {
	if e := DomainError(err); e != nil {
		return e.TextCode
	}
	return ""
}

// IsTokenExpiredError will check for expired bearer tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrBearerExpired)
}
