package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt silently truncates input beyond 72 bytes,
// so longer passwords are rejected rather than partially hashed.
const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

// ErrPasswordLength is returned for passwords outside the accepted bounds.
var ErrPasswordLength = fmt.Errorf("password must be %d-%d characters", minPasswordLength, maxPasswordLength)

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, bcrypt.DefaultCost)
}

// HashPasswordCost hashes a plaintext password with bcrypt at the given
// work factor. The configured cost comes from auth.bcrypt_cost.
func HashPasswordCost(password string, cost int) (string, error) {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return "", ErrPasswordLength
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a bcrypt hash.
// Returns true if the password matches. A malformed hash is an error;
// a wrong password is (false, nil).
func VerifyPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verifying password: %w", err)
}
