package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/core/port"
	"github.com/kangalos/auth-service/internal/infra/logger"
	"github.com/kangalos/auth-service/internal/infra/security"
	"github.com/kangalos/auth-service/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect. The
	// same error covers unknown accounts so callers cannot probe for them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified indicates the password matched but the email
	// address has not been verified yet.
	ErrAccountUnverified = errors.New("account email not verified")
)

// AuthService coordinates credential authentication.
type AuthService struct {
	users  port.UserRepository
	signer *security.TokenSigner
	logger *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users port.UserRepository, signer *security.TokenSigner, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, signer: signer, logger: log}
}

// Login validates the credentials and issues a session token. The
// verification status check runs only after the password matched, so an
// unverified-account response never leaks whether a password was correct for
// some other account.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a comparison so unknown accounts cost the same as a
			// wrong password.
			security.VerifyPassword(password, "")
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, fmt.Errorf("load user: %w", err)
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		s.logger.Debug("password mismatch",
			zap.String("email", logger.MaskEmail(email)),
		)
		return "", domain.User{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return "", domain.User{}, ErrAccountUnverified
	}

	token, err := s.signer.SignSession(user.Email, user.ID)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Info("user authenticated",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return token, *user, nil
}
