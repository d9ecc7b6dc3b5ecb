// Package operator guards the privileged endpoints with a single shared
// operator key stored as a bcrypt hash.
package operator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minKeyLength = 24

var (
	ErrKeyRequired = errors.New("operator key is required")
	ErrKeyTooShort = errors.New("operator key must be at least 24 characters")
	ErrInvalidHash = errors.New("operator key hash is not a bcrypt hash")
)

func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	if len(key) < minKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

func HashKey(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyKey(hash string, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// CheckHash rejects a configured hash bcrypt cannot use.
func CheckHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ErrInvalidHash
	}
	return nil
}

// GenerateKey returns a random hex key suitable for HashKey.
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
