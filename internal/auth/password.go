package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds accepted anywhere a credential is set. bcrypt rejects input
// longer than MaxPasswordLength bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
