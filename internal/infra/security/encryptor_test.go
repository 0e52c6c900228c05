package security

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newTestEncryptor(t *testing.T) *TokenEncryptor {
	t.Helper()

	key := bytes.Repeat([]byte{0x42}, 32)
	enc, err := NewTokenEncryptor(key)
	if err != nil {
		t.Fatalf("new token encryptor: %v", err)
	}
	return enc
}

func TestNewTokenEncryptorRejectsBadKeyLength(t *testing.T) {
	if _, err := NewTokenEncryptor([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)

	plaintext := `{"email":"a@b.com","purpose":"password_reset"}`
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if strings.ContainsAny(ciphertext, "+/=") {
		t.Fatalf("ciphertext %q is not URL-safe", ciphertext)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	recovered, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if recovered != plaintext {
		t.Fatalf("round trip = %q, want %q", recovered, plaintext)
	}
}

func TestEncryptIsRandomizedPerCall(t *testing.T) {
	enc := newTestEncryptor(t)

	first, err := enc.Encrypt("same input")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := enc.Encrypt("same input")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if first == second {
		t.Fatal("two encryptions of the same plaintext must differ")
	}
}

func TestDecryptFailsOnFlippedByte(t *testing.T) {
	enc := newTestEncryptor(t)

	ciphertext, err := enc.Encrypt("payload under test")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	flipped := base64.RawURLEncoding.EncodeToString(raw)

	if _, err := enc.Decrypt(flipped); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("decrypt flipped byte = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptFailsOnMalformedInput(t *testing.T) {
	enc := newTestEncryptor(t)

	for _, input := range []string{"", "!!!not-base64!!!", "c2hvcnQ"} {
		if _, err := enc.Decrypt(input); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("decrypt %q = %v, want ErrDecryptionFailed", input, err)
		}
	}
}

func TestDecryptFailsUnderDifferentKey(t *testing.T) {
	enc := newTestEncryptor(t)

	otherKey := bytes.Repeat([]byte{0x17}, 32)
	other, err := NewTokenEncryptor(otherKey)
	if err != nil {
		t.Fatalf("new token encryptor: %v", err)
	}

	ciphertext, err := enc.Encrypt("secret payload")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := other.Decrypt(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("decrypt with wrong key = %v, want ErrDecryptionFailed", err)
	}
}
