package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const nonceSize = 12

// ErrDecryptionFailed indicates the ciphertext is malformed, tampered with,
// or was produced under a different key.
var ErrDecryptionFailed = errors.New("encryptor: decryption failed")

// TokenEncryptor wraps signed tokens in AES-256-GCM so the value embedded in
// outbound links is an opaque blob rather than a readable JWT. Output layout:
// nonce (12 bytes) || ciphertext || auth tag, base64 URL-safe encoded.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor constructs an encryptor from a 32-byte key.
func NewTokenEncryptor(key []byte) (*TokenEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryptor: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryptor: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryptor: create GCM: %w", err)
	}

	return &TokenEncryptor{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns a string
// safe for use as a URL query parameter.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("encryptor: plaintext is empty")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encryptor: generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any structural problem, truncation, bit flip, or
// wrong key yields ErrDecryptionFailed; it never panics on hostile input.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ErrDecryptionFailed
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) <= nonceSize {
		return "", ErrDecryptionFailed
	}

	plain, err := e.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plain), nil
}
