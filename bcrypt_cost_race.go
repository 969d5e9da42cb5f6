//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds run slower, keep hashing cheap so suites stay within timeouts
	return bcrypt.DefaultCost
}
