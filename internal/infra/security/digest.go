package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest returns a SHA-256 hex digest of a token value. Log lines
// reference tokens by digest only; the raw value never leaves the mail path.
func TokenDigest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
