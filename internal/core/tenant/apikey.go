package tenant

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "plk_"

// GenerateAPIKey returns a new random service key. Only its bcrypt hash is stored.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey hashes a key for storage.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey checks key against the tenant's stored hash.
func VerifyAPIKey(t *Tenant, key string) error {
	if t == nil || t.APIKeyHash == nil || *t.APIKeyHash == "" {
		return ErrInvalidAPIKey
	}
	err := bcrypt.CompareHashAndPassword([]byte(*t.APIKeyHash), []byte(key))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidAPIKey
	}
	if err != nil {
		return fmt.Errorf("verify api key: %w", err)
	}
	return nil
}
