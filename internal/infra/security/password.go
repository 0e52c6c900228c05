package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the fixed work factor for password hashing.
const bcryptCost = 12

// HashPassword generates a salted bcrypt hash for the provided password.
// Two calls with the same input produce different hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares the provided password against a stored bcrypt hash.
// A malformed or corrupt hash is treated as a non-match so callers cannot
// distinguish a wrong password from a damaged record.
func VerifyPassword(password, encoded string) bool {
	if password == "" || encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}
