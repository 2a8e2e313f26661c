package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/handler/dto"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/service"
	"github.com/authgate/authgate/internal/token"
)

const testPassword = "Abcdef1!"

var (
	handlerKeyOnce sync.Once
	handlerKey     *rsa.PrivateKey
)

func handlerTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	handlerKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		handlerKey = key
	})
	return handlerKey
}

// memStore is an in-memory UserStore for handler tests.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*model.User)}
}

func (s *memStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.users[key]; ok {
		return repository.ErrEmailExists
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[key] = user
	return nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *memStore) {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		PrivateKey: handlerTestKey(t),
		Issuer:     "authgate-test",
		Audience:   "authgate-test-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	svc := service.NewAuthService(store, codec, nil, logger, nil)

	return NewAuthHandler(svc, logger), store
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func registerBody(email string) string {
	b, _ := json.Marshal(dto.RegisterRequest{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  testPassword,
	})
	return string(b)
}

func TestAuthHandler_Register(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Email != "ada@example.com" {
		t.Errorf("unexpected email: %s", resp.Email)
	}
	if !resp.IsActive {
		t.Error("expected new user to be active")
	}
	if resp.ID == "" {
		t.Error("expected non-empty user id")
	}
	if strings.Contains(rec.Body.String(), testPassword) {
		t.Error("response leaks the plaintext password")
	}
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", rec.Code)
	}

	rec = postJSON(t, h.Register, "/api/v1/auth/register", registerBody("Ada@Example.com"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "EMAIL_EXISTS")
}

func TestAuthHandler_Register_ValidationError(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "short",
	})

	rec := postJSON(t, h.Register, "/api/v1/auth/register", string(body))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var resp map[string]map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"]["field"] != "password" {
		t.Errorf("expected error scoped to password, got %q", resp["error"]["field"])
	}
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "INVALID_JSON")
}

func TestAuthHandler_Login(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	body, _ := json.Marshal(dto.LoginRequest{Email: "ada@example.com", Password: testPassword})
	rec = postJSON(t, h.Login, "/api/v1/auth/login", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
	if resp.RefreshToken == "" {
		t.Error("expected non-empty refresh token")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("expected token type Bearer, got %q", resp.TokenType)
	}
	if resp.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("unexpected expires_in: %d", resp.ExpiresIn)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	body, _ := json.Marshal(dto.LoginRequest{Email: "ada@example.com", Password: "Wrongpw1!"})
	rec = postJSON(t, h.Login, "/api/v1/auth/login", string(body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "INVALID_CREDENTIALS")
}

func TestAuthHandler_Login_UnknownEmail(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	body, _ := json.Marshal(dto.LoginRequest{Email: "ghost@example.com", Password: testPassword})
	rec := postJSON(t, h.Login, "/api/v1/auth/login", string(body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "INVALID_CREDENTIALS")
}

func TestAuthHandler_Login_InactiveAccount(t *testing.T) {
	h, store := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	store.mu.Lock()
	store.users["ada@example.com"].IsActive = false
	store.mu.Unlock()

	body, _ := json.Marshal(dto.LoginRequest{Email: "ada@example.com", Password: testPassword})
	rec = postJSON(t, h.Login, "/api/v1/auth/login", string(body))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "ACCOUNT_INACTIVE")
}

func TestAuthHandler_Refresh(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	body, _ := json.Marshal(dto.LoginRequest{Email: "ada@example.com", Password: testPassword})
	rec = postJSON(t, h.Login, "/api/v1/auth/login", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}

	var loginResp dto.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}

	refreshBody, _ := json.Marshal(dto.RefreshRequest{RefreshToken: loginResp.RefreshToken})
	rec = postJSON(t, h.Refresh, "/api/v1/auth/refresh", string(refreshBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode refresh response: %v", err)
	}

	if resp.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
	if resp.RefreshToken != "" {
		t.Error("refresh grant must not mint a new refresh token")
	}
}

func TestAuthHandler_Refresh_AccessTokenRejected(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", registerBody("ada@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	body, _ := json.Marshal(dto.LoginRequest{Email: "ada@example.com", Password: testPassword})
	rec = postJSON(t, h.Login, "/api/v1/auth/login", string(body))

	var loginResp dto.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}

	refreshBody, _ := json.Marshal(dto.RefreshRequest{RefreshToken: loginResp.AccessToken})
	rec = postJSON(t, h.Refresh, "/api/v1/auth/refresh", string(refreshBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "UNAUTHORIZED")
}

func TestAuthHandler_Refresh_Garbage(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	refreshBody, _ := json.Marshal(dto.RefreshRequest{RefreshToken: "not.a.token"})
	rec := postJSON(t, h.Refresh, "/api/v1/auth/refresh", string(refreshBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "UNAUTHORIZED")
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var resp map[string]map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if got := resp["error"]["code"]; got != want {
		t.Errorf("expected error code %s, got %s", want, got)
	}
}
