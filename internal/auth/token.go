// Package auth guards the admin endpoints with a static bearer token whose
// bcrypt hash is supplied through configuration.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	// MinTokenLength and MaxTokenLength bound admin tokens. bcrypt ignores
	// input past 72 bytes.
	MinTokenLength = 12
	MaxTokenLength = 72
)

var (
	// ErrInvalidToken is returned when a token does not match the configured hash.
	ErrInvalidToken = errors.New("invalid admin token")

	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrWeakToken is returned by ValidateToken for tokens outside the length bounds.
	ErrWeakToken = errors.New("admin token does not meet length requirements")
)

// ValidateToken checks that a plaintext token is usable.
func ValidateToken(token string) error {
	switch n := len(token); {
	case n < MinTokenLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakToken, MinTokenLength)
	case n > MaxTokenLength:
		return fmt.Errorf("%w: must be at most %d characters", ErrWeakToken, MaxTokenLength)
	}
	return nil
}

// HashToken hashes a plaintext admin token using bcrypt.
func HashToken(token string) ([]byte, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}
	return bcrypt.GenerateFromPassword([]byte(token), bcryptCost)
}

// VerifyToken checks a plaintext token against a bcrypt hash.
// Returns ErrInvalidToken if the token does not match.
func VerifyToken(token string, hash []byte) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
