package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword password does not match hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth)

// MaxPasswordBytes is the longest input bcrypt accepts
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes
var ErrPasswordTooLong = goerrors.New("password must be at most 72 bytes", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// BcryptHasher implements PasswordHasher with a fixed cost
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher, cost outside the bcrypt
// range falls back to the build default
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &BcryptHasher{cost: cost}
}

// HashPassword will generate a password hash
func (h *BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(b), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// passwordBytes limits the encoded length, Length counts runes
var passwordBytes = validation.By(func(value interface{}) error {
	if s, ok := value.(string); ok && len(s) > MaxPasswordBytes {
		return errors.New("the length must be no more than 72 bytes")
	}
	return nil
})
