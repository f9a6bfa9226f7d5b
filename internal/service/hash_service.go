package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// BcryptHashService implements ports.HashService using bcrypt.
type BcryptHashService struct{}

// NewBcryptHashService creates a new bcrypt hash service.
func NewBcryptHashService() *BcryptHashService {
	return &BcryptHashService{}
}

// Hash generates a salted bcrypt hash of the secret.
func (s *BcryptHashService) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(b), nil
}

// Verify checks whether secret matches the given bcrypt hash. A mismatch is
// not an error: only infrastructure-level failures (malformed hash) are.
func (s *BcryptHashService) Verify(secret string, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("comparing secret hash: %w", err)
	}
	return true, nil
}
