package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidTokenLength is returned when a token of zero or negative size is requested.
var ErrInvalidTokenLength = errors.New("crypto: token length must be positive")

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
// An empty hash never verifies.
func VerifyPassword(hashedPassword, password string) bool {
	if strings.TrimSpace(hashedPassword) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ConstantTimeEqual reports whether a and b are equal without leaking timing information.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateToken returns a random URL-safe token built from length random bytes.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidTokenLength
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
