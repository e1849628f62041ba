// Package auth adds optional password protection to the web UI: bcrypt
// password verification, cookie sessions and a login rate limit.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost used for the configured password.
	DefaultCost = 12

	// MinCost is the lowest cost HashPassword accepts outside tests.
	MinCost = bcrypt.MinCost
)

var (
	// ErrEmptyPassword is returned when hashing or verifying an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordMismatch is returned for a wrong password. It does not reveal
	// whether the hash itself was malformed.
	ErrPasswordMismatch = errors.New("password does not match")

	// ErrInvalidHash is returned when no hash is available to compare against.
	ErrInvalidHash = errors.New("invalid password hash format")
)

// HashPassword returns the bcrypt hash of password at cost. A cost of 0
// selects DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < MinCost || cost > bcrypt.MaxCost {
		return "", bcrypt.InvalidCostError(cost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password with hash in constant time.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// HashCost returns the cost factor embedded in hash.
func HashCost(hash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return 0, ErrInvalidHash
	}
	return cost, nil
}
