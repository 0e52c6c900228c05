package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/core/port"
	"github.com/kangalos/auth-service/internal/infra/config"
	"github.com/kangalos/auth-service/internal/infra/logger"
	"github.com/kangalos/auth-service/internal/infra/security"
	"github.com/kangalos/auth-service/internal/repository"
)

// ErrSamePassword indicates the replacement password equals the current one.
var ErrSamePassword = errors.New("new password matches the current password")

// PasswordResetService handles the forgot-password, create-password and
// reset-password flows.
type PasswordResetService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	notifier  port.NotificationSender
	events    port.EventPublisher
	minter    *linkMinter
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordResetService constructs a password reset service.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserRepository,
	notifier port.NotificationSender,
	events port.EventPublisher,
	signer *security.TokenSigner,
	encryptor *security.TokenEncryptor,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *PasswordResetService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordResetService{
		cfg:       cfg,
		users:     users,
		notifier:  notifier,
		events:    events,
		minter:    newLinkMinter(signer, encryptor, cfg.App.FrontendURL),
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// ForgotPassword emails a reset link when the account exists. The outcome is
// identical either way so the endpoint cannot be used to enumerate accounts.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	return s.sendResetLink(ctx, email, s.cfg.JWT.ResetTokenTTL, func(ctx context.Context, to, firstName, link string) error {
		return s.notifier.SendPasswordReset(ctx, to, firstName, link)
	})
}

// SendCreatePasswordEmail emails a long-lived create-password invitation,
// used for accounts provisioned without a password. Non-enumeration applies
// the same as ForgotPassword.
func (s *PasswordResetService) SendCreatePasswordEmail(ctx context.Context, email string) error {
	return s.sendResetLink(ctx, email, s.cfg.JWT.InviteTokenTTL, func(ctx context.Context, to, firstName, link string) error {
		return s.notifier.SendCreatePassword(ctx, to, firstName, link)
	})
}

func (s *PasswordResetService) sendResetLink(ctx context.Context, email string, ttl time.Duration, send func(ctx context.Context, to, firstName, link string) error) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("reset link requested for unknown account",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	link, err := s.minter.mint(user.Email, domain.PurposePasswordReset, ttl, resetPasswordPath)
	if err != nil {
		return err
	}

	if err := send(ctx, user.Email, user.FirstName, link); err != nil {
		// Delivery failure must not be observable to the caller.
		s.logger.Warn("send reset link",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
		return nil
	}

	now := s.now().UTC()
	s.publishResetRequested(ctx, *user, now, now.Add(ttl))

	return nil
}

// ResetPassword validates a reset link token and replaces the account
// password. A token whose account vanished is reported as invalid, and the
// new password is rejected before hashing when it matches the current one.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.minter.open(token, domain.PurposePasswordReset)
	if err != nil {
		return err
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkTokenInvalid
		}
		return fmt.Errorf("load user: %w", err)
	}

	if security.VerifyPassword(newPassword, user.PasswordHash) {
		return ErrSamePassword
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChanged(ctx, user.ID, changedAt)

	s.logger.Info("password reset",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return nil
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, user domain.User, requestedAt, expiresAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestedAt:       requestedAt,
		MaskedDestination: logger.MaskEmail(user.Email),
		ExpiresAt:         expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish reset requested event", zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID string, changedAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: changedAt,
		Reason:    "reset_link",
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event", zap.Error(err))
	}
}
