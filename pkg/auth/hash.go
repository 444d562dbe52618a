package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultSaltRounds is the bcrypt cost used unless a plugin overrides it.
const DefaultSaltRounds = 12

// HashPassword hashes password with bcrypt at DefaultSaltRounds.
func HashPassword(password string) (string, error) {
	return hashPassword(password, DefaultSaltRounds)
}

// ComparePassword reports whether password matches hash.
func ComparePassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password hash: %w", err)
	}
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
