package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/infra/config"
	"github.com/kangalos/auth-service/internal/infra/security"
	"github.com/kangalos/auth-service/internal/repository"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{
			Name:        "kangalos-auth",
			Env:         "test",
			FrontendURL: "https://kangalos.example.edu",
		},
		JWT: config.JWTSettings{
			Secret:         "test-signing-secret",
			Issuer:         "kangalos-auth",
			SessionTTL:     24 * time.Hour,
			ResetTokenTTL:  time.Hour,
			InviteTokenTTL: 168 * time.Hour,
		},
	}
}

func newTestSigner(t *testing.T, cfg *config.AppConfig) *security.TokenSigner {
	t.Helper()

	signer, err := security.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return signer
}

func newTestEncryptor(t *testing.T) *security.TokenEncryptor {
	t.Helper()

	encryptor, err := security.NewTokenEncryptor([]byte(testEncryptionKey))
	if err != nil {
		t.Fatalf("NewTokenEncryptor: %v", err)
	}
	return encryptor
}

type fakeUserRepo struct {
	users     map[string]domain.User // keyed by email
	createErr error
	created   []domain.User
	verified  map[string]time.Time
	passwords map[string]string
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		users:     make(map[string]domain.User),
		verified:  make(map[string]time.Time),
		passwords: make(map[string]string),
	}
	for _, user := range users {
		repo.users[user.Email] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.users[user.Email]; ok {
		return repository.ErrDuplicate
	}
	r.users[user.Email] = user
	r.created = append(r.created, user)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := r.users[email]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindConflicts(_ context.Context, email, username, phone string) ([]string, error) {
	var conflicts []string
	for _, field := range []string{"email", "username", "phone"} {
		for _, user := range r.users {
			switch {
			case field == "email" && user.Email == email:
				conflicts = append(conflicts, field)
			case field == "username" && user.Username == username:
				conflicts = append(conflicts, field)
			case field == "phone" && phone != "" && user.Phone != nil && *user.Phone == phone:
				conflicts = append(conflicts, field)
			default:
				continue
			}
			break
		}
	}
	return conflicts, nil
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	for email, user := range r.users {
		if user.ID == id {
			user.IsVerified = true
			at := verifiedAt
			user.VerifiedAt = &at
			r.users[email] = user
			r.verified[id] = verifiedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	for email, user := range r.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			user.LastPasswordChange = changedAt
			r.users[email] = user
			r.passwords[id] = passwordHash
			return nil
		}
	}
	return repository.ErrNotFound
}

type sentMail struct {
	template  string
	to        string
	firstName string
	link      string
}

type fakeNotifier struct {
	sent    []sentMail
	sendErr error
}

func (n *fakeNotifier) record(template, to, firstName, link string) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentMail{template: template, to: to, firstName: firstName, link: link})
	return nil
}

func (n *fakeNotifier) SendEmailVerification(_ context.Context, to, firstName, link string) error {
	return n.record("email_verification", to, firstName, link)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, to, firstName, link string) error {
	return n.record("password_reset", to, firstName, link)
}

func (n *fakeNotifier) SendCreatePassword(_ context.Context, to, firstName, link string) error {
	return n.record("create_password", to, firstName, link)
}

type fakeEvents struct {
	registered     []domain.UserRegisteredEvent
	verified       []domain.EmailVerifiedEvent
	resetRequested []domain.PasswordResetRequestedEvent
	changed        []domain.PasswordChangedEvent
}

func (e *fakeEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	e.registered = append(e.registered, event)
	return nil
}

func (e *fakeEvents) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	e.verified = append(e.verified, event)
	return nil
}

func (e *fakeEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	e.resetRequested = append(e.resetRequested, event)
	return nil
}

func (e *fakeEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.changed = append(e.changed, event)
	return nil
}

var errUnexpectedCall = errors.New("unexpected call")
