package usecase

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/infra/security"
)

// Frontend paths the action links land on.
const (
	verifyEmailPath   = "/verify-email"
	resetPasswordPath = "/reset-password"
)

// linkMinter signs and encrypts link tokens and renders the frontend URL the
// recipient clicks. Only the encrypted form ever leaves the service.
type linkMinter struct {
	signer      *security.TokenSigner
	encryptor   *security.TokenEncryptor
	frontendURL string
}

func newLinkMinter(signer *security.TokenSigner, encryptor *security.TokenEncryptor, frontendURL string) *linkMinter {
	return &linkMinter{
		signer:      signer,
		encryptor:   encryptor,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (m *linkMinter) mint(email string, purpose domain.TokenPurpose, ttl time.Duration, path string) (string, error) {
	signed, err := m.signer.SignLink(domain.LinkClaims{Email: email, Purpose: purpose}, ttl)
	if err != nil {
		return "", fmt.Errorf("sign link token: %w", err)
	}

	encrypted, err := m.encryptor.Encrypt(signed)
	if err != nil {
		return "", fmt.Errorf("encrypt link token: %w", err)
	}

	query := url.Values{"token": {encrypted}}
	return fmt.Sprintf("%s%s?%s", m.frontendURL, path, query.Encode()), nil
}

// open reverses mint on the token query parameter: decrypt, verify the
// signature and expiry, and enforce the expected purpose. Any failure other
// than expiry collapses into ErrLinkTokenInvalid.
func (m *linkMinter) open(token string, purpose domain.TokenPurpose) (*security.LinkTokenClaims, error) {
	signed, err := m.encryptor.Decrypt(token)
	if err != nil {
		return nil, ErrLinkTokenInvalid
	}

	claims, err := m.signer.Verify(signed)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrLinkTokenExpired
		}
		return nil, ErrLinkTokenInvalid
	}

	if claims.Purpose != string(purpose) {
		return nil, ErrLinkTokenInvalid
	}

	return claims, nil
}
