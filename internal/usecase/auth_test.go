package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/infra/security"
)

func verifiedUser(t *testing.T, password string) domain.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return domain.User{
		ID:           "user-1",
		Email:        "jean@example.com",
		Username:     "jean",
		FirstName:    "Jean",
		LastName:     "Mugisha",
		PasswordHash: hash,
		IsVerified:   true,
	}
}

func TestLogin_IssuesSessionToken(t *testing.T) {
	cfg := newTestConfig()
	signer := newTestSigner(t, cfg)
	user := verifiedUser(t, strongPassword)
	service := NewAuthService(newFakeUserRepo(user), signer, nil)

	token, got, err := service.Login(context.Background(), "jean@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("session token does not verify: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, claims.Subject)
	}
	if claims.Purpose != "" {
		t.Fatalf("session tokens must carry no purpose, got %q", claims.Purpose)
	}
}

func TestLogin_NormalizesEmailCase(t *testing.T) {
	cfg := newTestConfig()
	service := NewAuthService(newFakeUserRepo(verifiedUser(t, strongPassword)), newTestSigner(t, cfg), nil)

	// Accounts are stored with a lowercased email, so the typed address must
	// match regardless of casing or surrounding whitespace.
	_, got, err := service.Login(context.Background(), " Jean@Example.com ", strongPassword)
	if err != nil {
		t.Fatalf("Login with mixed-case email returned error: %v", err)
	}
	if got.Email != "jean@example.com" {
		t.Fatalf("expected stored email, got %q", got.Email)
	}
}

func TestLogin_UnknownAccountAndWrongPasswordLookAlike(t *testing.T) {
	service := NewAuthService(newFakeUserRepo(verifiedUser(t, strongPassword)), newTestSigner(t, newTestConfig()), nil)

	_, _, missingErr := service.Login(context.Background(), "ghost@example.com", strongPassword)
	_, _, wrongErr := service.Login(context.Background(), "jean@example.com", "wrong-password-9")

	if !errors.Is(missingErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown account, got %v", missingErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}
	if missingErr.Error() != wrongErr.Error() {
		t.Fatalf("unknown account and wrong password must be indistinguishable")
	}
}

func TestLogin_UnverifiedOnlyAfterPasswordMatch(t *testing.T) {
	user := verifiedUser(t, strongPassword)
	user.IsVerified = false
	service := NewAuthService(newFakeUserRepo(user), newTestSigner(t, newTestConfig()), nil)

	// Wrong password on an unverified account must not reveal the account
	// state.
	_, _, err := service.Login(context.Background(), "jean@example.com", "wrong-password-9")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials before the verification check, got %v", err)
	}

	_, _, err = service.Login(context.Background(), "jean@example.com", strongPassword)
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified after password match, got %v", err)
	}
}

func TestLogin_EmptyInputRejected(t *testing.T) {
	service := NewAuthService(newFakeUserRepo(), newTestSigner(t, newTestConfig()), nil)

	_, _, err := service.Login(context.Background(), "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
