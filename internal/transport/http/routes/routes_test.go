package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/infra/config"
	"github.com/kangalos/auth-service/internal/infra/security"
	"github.com/kangalos/auth-service/internal/repository"
	"github.com/kangalos/auth-service/internal/transport/http/handlers"
	"github.com/kangalos/auth-service/internal/usecase"
)

type memUserRepo struct {
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := r.users[user.Email]; ok {
		return repository.ErrDuplicate
	}
	r.users[user.Email] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := r.users[email]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindConflicts(_ context.Context, email, username, phone string) ([]string, error) {
	var conflicts []string
	for _, user := range r.users {
		if user.Email == email {
			conflicts = append(conflicts, "email")
			break
		}
	}
	for _, user := range r.users {
		if user.Username == username {
			conflicts = append(conflicts, "username")
			break
		}
	}
	if phone != "" {
		for _, user := range r.users {
			if user.Phone != nil && *user.Phone == phone {
				conflicts = append(conflicts, "phone")
				break
			}
		}
	}
	return conflicts, nil
}

func (r *memUserRepo) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	for email, user := range r.users {
		if user.ID == id {
			user.IsVerified = true
			at := verifiedAt
			user.VerifiedAt = &at
			r.users[email] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	for email, user := range r.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			user.LastPasswordChange = changedAt
			r.users[email] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

type memNotifier struct {
	links []string
}

func (n *memNotifier) send(link string) error {
	n.links = append(n.links, link)
	return nil
}

func (n *memNotifier) SendEmailVerification(_ context.Context, _, _, link string) error {
	return n.send(link)
}

func (n *memNotifier) SendPasswordReset(_ context.Context, _, _, link string) error {
	return n.send(link)
}

func (n *memNotifier) SendCreatePassword(_ context.Context, _, _, link string) error {
	return n.send(link)
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *memNotifier) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
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

	signer, err := security.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	encryptor, err := security.NewTokenEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenEncryptor: %v", err)
	}

	repo := newMemUserRepo()
	notifier := &memNotifier{}

	registration := usecase.NewRegistrationService(cfg, repo, notifier, nil, signer, encryptor, nil, nil)
	auth := usecase.NewAuthService(repo, signer, nil)
	reset := usecase.NewPasswordResetService(cfg, repo, notifier, nil, signer, encryptor, nil, nil)

	router := NewRouter(Dependencies{
		Config:       cfg,
		Registration: handlers.NewRegistrationHandler(registration, nil),
		Auth:         handlers.NewAuthHandler(auth, nil),
		Password:     handlers.NewPasswordHandler(reset, nil),
		Health:       handlers.NewHealthHandler(),
	})

	return router, notifier
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v: %s", err, rec.Body.String())
	}
	return rec, env
}

func lastLinkToken(t *testing.T, notifier *memNotifier) string {
	t.Helper()

	if len(notifier.links) == 0 {
		t.Fatalf("no link was sent")
	}
	parsed, err := url.Parse(notifier.links[len(notifier.links)-1])
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return parsed.Query().Get("token")
}

func registerPayload() map[string]string {
	return map[string]string{
		"email":     "jean@example.com",
		"username":  "jean",
		"firstName": "Jean",
		"lastName":  "Mugisha",
		"password":  "tr4verse-the-volcano",
	}
}

func TestAuthFlow_RegisterVerifyLogin(t *testing.T) {
	router, notifier := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", registerPayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Status {
		t.Fatalf("expected status true, got %s", rec.Body.String())
	}
	var data struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("register data: %v", err)
	}
	if data.User.ID == "" || data.User.Email != "jean@example.com" {
		t.Fatalf("unexpected register data %s", env.Data)
	}

	// Login before verification fails with the distinct message.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jean@example.com",
		"password": "tr4verse-the-volcano",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unverified login status %d", rec.Code)
	}
	if env.Message == "Invalid credentials" {
		t.Fatalf("unverified login must carry the verification message")
	}

	// Verify, then login succeeds with an access token.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"token": lastLinkToken(t, notifier),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status %d: %s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jean@example.com",
		"password": "tr4verse-the-volcano",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil || login.AccessToken == "" {
		t.Fatalf("expected access token, got %s", env.Data)
	}
}

func TestAuthFlow_LoginAcceptsMixedCaseEmail(t *testing.T) {
	router, notifier := newTestRouter(t)

	payload := registerPayload()
	payload["email"] = "Jean@Example.com"
	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", payload); rec.Code != http.StatusCreated {
		t.Fatalf("register failed")
	}
	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": lastLinkToken(t, notifier)}); rec.Code != http.StatusOK {
		t.Fatalf("verify failed")
	}

	// Logging in with the address exactly as typed at registration must
	// succeed even though accounts are stored lowercased.
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "Jean@Example.com",
		"password": payload["password"],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mixed-case login status %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Status {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
}

func TestAuthFlow_DuplicateRegistrationConflicts(t *testing.T) {
	router, _ := newTestRouter(t)

	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", registerPayload()); rec.Code != http.StatusCreated {
		t.Fatalf("first register status %d", rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", registerPayload())
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status %d", rec.Code)
	}
	if env.Status {
		t.Fatalf("duplicate register must report failure")
	}
}

func TestAuthFlow_ForgotAndResetPassword(t *testing.T) {
	router, notifier := newTestRouter(t)

	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", registerPayload()); rec.Code != http.StatusCreated {
		t.Fatalf("register failed")
	}
	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": lastLinkToken(t, notifier)}); rec.Code != http.StatusOK {
		t.Fatalf("verify failed")
	}

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "jean@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot status %d", rec.Code)
	}
	generic := env.Message

	// Unknown accounts receive the identical acknowledgement.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "ghost@example.com"})
	if rec.Code != http.StatusOK || env.Message != generic {
		t.Fatalf("forgot-password must not reveal account existence")
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":       lastLinkToken(t, notifier),
		"newPassword": "gr4vity-assisted-orbit",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jean@example.com",
		"password": "gr4vity-assisted-orbit",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password status %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jean@example.com",
		"password": "tr4verse-the-volcano",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password must be rejected, status %d", rec.Code)
	}
}

func TestAuthFlow_ResetWithGarbageToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":       "garbage",
		"newPassword": "gr4vity-assisted-orbit",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage token status %d", rec.Code)
	}
	if env.Status {
		t.Fatalf("garbage token must report failure")
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status %d", rec.Code)
	}
}

func TestEnvelope_DataIsEmptyObjectWithoutPayload(t *testing.T) {
	router, notifier := newTestRouter(t)

	if rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", registerPayload()); rec.Code != http.StatusCreated {
		t.Fatalf("register failed")
	}

	// Only register and login populate data; everything else carries an
	// empty object, never null.
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": lastLinkToken(t, notifier)})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status %d", rec.Code)
	}
	if string(env.Data) != "{}" {
		t.Fatalf("expected empty data object, got %s", env.Data)
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "jean@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot status %d", rec.Code)
	}
	if string(env.Data) != "{}" {
		t.Fatalf("expected empty data object, got %s", env.Data)
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "jean@example.com", "password": "wrong-password-9"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login status %d", rec.Code)
	}
	if string(env.Data) != "{}" {
		t.Fatalf("expected empty data object on failure, got %s", env.Data)
	}
}

func TestEnvelope_PresentOnValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation failure status %d", rec.Code)
	}
	if env.Status || env.Message == "" {
		t.Fatalf("expected failure envelope, got %s", rec.Body.String())
	}
	if fmt.Sprintf("%s", env.Meta) == "" {
		t.Fatalf("expected meta in envelope")
	}
}
