package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

// GenerateOTP returns a 6 digit code drawn uniformly from [100000, 999999]
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// GenerateResetToken returns an opaque random reset token
func GenerateResetToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
