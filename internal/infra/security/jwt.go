package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kangalos/auth-service/internal/core/domain"
)

var (
	// ErrTokenInvalid indicates the token is malformed, tampered with, or
	// signed by an unknown key.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrTokenExpired indicates the token is structurally valid but past
	// its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// LinkTokenClaims carries the subject email and the purpose tag for link
// tokens. Session tokens carry the email and a subject but no purpose.
type LinkTokenClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 signed tokens with a static secret.
type TokenSigner struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenSigner constructs a TokenSigner from the process-wide signing secret.
func NewTokenSigner(secret, issuer string, defaultTTL time.Duration) (*TokenSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}

	return &TokenSigner{
		secret:     []byte(secret),
		issuer:     issuer,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the clock used for issuance and verification (tests).
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// SignLink signs claims for a single-use action link. A non-positive ttl
// falls back to the signer default.
func (s *TokenSigner) SignLink(claims domain.LinkClaims, ttl time.Duration) (string, error) {
	if claims.Email == "" {
		return "", fmt.Errorf("jwt: claims email is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LinkTokenClaims{
		Email:   claims.Email,
		Purpose: string(claims.Purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// SignSession signs a session token for an authenticated user. Session tokens
// carry no purpose tag; they are structurally distinct from link tokens.
func (s *TokenSigner) SignSession(email, userID string) (string, error) {
	if email == "" || userID == "" {
		return "", fmt.Errorf("jwt: email and user id are required")
	}

	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LinkTokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.defaultTTL)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Verify validates signature and expiry and returns the embedded claims.
// Expiry is reported as ErrTokenExpired; every other failure collapses into
// ErrTokenInvalid so callers never branch on error text.
func (s *TokenSigner) Verify(token string) (*LinkTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &LinkTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid || strings.TrimSpace(claims.Email) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
