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

var (
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrLinkTokenInvalid indicates the action link token is malformed, tampered with, or not ours.
	ErrLinkTokenInvalid = errors.New("link token invalid")
	// ErrLinkTokenExpired indicates the action link token is authentic but past its expiry.
	ErrLinkTokenExpired = errors.New("link token expired")
)

// DuplicateError reports which identity fields collide with an existing
// account. Fields is empty when the collision surfaced from the database
// uniqueness backstop rather than the pre-check.
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	if len(e.Fields) == 0 {
		return "an account with these details already exists"
	}
	return fmt.Sprintf("an account with this %s already exists", strings.Join(e.Fields, ", "))
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string
	Username  string
	Phone     string
	FirstName string
	LastName  string
	Password  string
}

// RegistrationService handles account creation and email verification.
type RegistrationService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	notifier  port.NotificationSender
	events    port.EventPublisher
	minter    *linkMinter
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserRepository,
	notifier port.NotificationSender,
	events port.EventPublisher,
	signer *security.TokenSigner,
	encryptor *security.TokenEncryptor,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
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
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates an unverified account and emails a verification link. The
// duplicate check runs before hashing so colliding requests never pay the
// bcrypt cost.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	phone := strings.TrimSpace(input.Phone)
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)

	if email == "" {
		return domain.User{}, fmt.Errorf("email is required")
	}
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	if firstName == "" || lastName == "" {
		return domain.User{}, fmt.Errorf("first and last name are required")
	}
	if input.Password == "" {
		return domain.User{}, fmt.Errorf("password is required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	conflicts, err := s.users.FindConflicts(ctx, email, username, phone)
	if err != nil {
		return domain.User{}, fmt.Errorf("check duplicates: %w", err)
	}
	if len(conflicts) > 0 {
		return domain.User{}, &DuplicateError{Fields: conflicts}
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Username:           username,
		FirstName:          firstName,
		LastName:           lastName,
		PasswordHash:       passwordHash,
		IsVerified:         false,
		CreatedAt:          now,
		LastPasswordChange: now,
	}
	if phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A racing registration won the insert.
			return domain.User{}, &DuplicateError{}
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	link, err := s.minter.mint(email, domain.PurposeEmailVerification, 0, verifyEmailPath)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.notifier.SendEmailVerification(ctx, email, firstName, link); err != nil {
		return domain.User{}, fmt.Errorf("send verification email: %w", err)
	}

	s.publishRegistered(ctx, user)

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(email)),
	)

	return user, nil
}

// VerifyEmail validates a verification link token and marks the account
// verified. Re-submitting the link for an already verified account succeeds.
func (s *RegistrationService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.minter.open(token, domain.PurposeEmailVerification)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The account behind the link no longer exists; the token is
			// indistinguishable from a forged one for the caller.
			return ErrLinkTokenInvalid
		}
		return fmt.Errorf("load user: %w", err)
	}

	if user.IsVerified {
		return nil
	}

	verifiedAt := s.now().UTC()
	if err := s.users.MarkVerified(ctx, user.ID, verifiedAt); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	s.publishVerified(ctx, *user, verifiedAt)

	s.logger.Info("email verified",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return nil
}

func (s *RegistrationService) publishRegistered(ctx context.Context, user domain.User) {
	if s.events == nil {
		return
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		RegisteredAt: user.CreatedAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event", zap.Error(err))
	}
}

func (s *RegistrationService) publishVerified(ctx context.Context, user domain.User, verifiedAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.EmailVerifiedEvent{
		EventID:    uuid.NewString(),
		UserID:     user.ID,
		Email:      user.Email,
		VerifiedAt: verifiedAt,
	}
	if err := s.events.PublishEmailVerified(ctx, event); err != nil {
		s.logger.Warn("publish email verified event", zap.Error(err))
	}
}
