package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/token"
)

var (
	mwKeyOnce sync.Once
	mwKey     *rsa.PrivateKey
)

func middlewareTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	mwKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		mwKey = key
	})
	return mwKey
}

func newMiddlewareCodec(t *testing.T, now func() time.Time) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		PrivateKey: middlewareTestKey(t),
		Issuer:     "authgate-test",
		Audience:   "authgate-test-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return codec
}

// stubUserStore returns a fixed user or error for any lookup.
type stubUserStore struct {
	user *model.User
	err  error
}

func (s *stubUserStore) CreateUser(ctx context.Context, user *model.User) error { return nil }

func (s *stubUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func (s *stubUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

// stubRevocations marks every jti in the set as revoked.
type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[jti], nil
}

func testUser() *model.User {
	now := time.Now().UTC()
	return &model.User{
		ID:        uuid.New(),
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		IsActive:  true,
		Access:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// okHandler records the identity placed in the request context.
func okHandler(got **model.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	user := testUser()
	codec := newMiddlewareCodec(t, nil)

	raw, err := codec.IssueAccess(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var identity *model.Identity
	handler := Authenticate(AuthConfig{
		Logger: discardLogger(),
		Codec:  codec,
		Store:  &stubUserStore{user: user},
	})(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if identity == nil {
		t.Fatal("expected identity in context")
	}
	if identity.ID != user.ID {
		t.Errorf("identity id = %s, want %s", identity.ID, user.ID)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	user := testUser()
	codec := newMiddlewareCodec(t, nil)

	validToken, err := codec.IssueAccess(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	refreshToken, err := codec.IssueRefresh(user)
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	// Token minted in the past, already expired when verified.
	past := time.Now().Add(-2 * time.Hour)
	expiredCodec := newMiddlewareCodec(t, func() time.Time { return past })
	expiredToken, err := expiredCodec.IssueAccess(user)
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}

	verifiedClaims, err := codec.VerifyAccess(validToken)
	if err != nil {
		t.Fatalf("failed to verify issued token: %v", err)
	}

	tests := []struct {
		name        string
		header      string
		store       *stubUserStore
		revocations *stubRevocations
	}{
		{
			name:   "missing header",
			header: "",
			store:  &stubUserStore{user: user},
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
			store:  &stubUserStore{user: user},
		},
		{
			name:   "garbage token",
			header: "Bearer not.a.token",
			store:  &stubUserStore{user: user},
		},
		{
			name:   "refresh token on api route",
			header: "Bearer " + refreshToken,
			store:  &stubUserStore{user: user},
		},
		{
			name:   "expired token",
			header: "Bearer " + expiredToken,
			store:  &stubUserStore{user: user},
		},
		{
			name:        "revoked token",
			header:      "Bearer " + validToken,
			store:       &stubUserStore{user: user},
			revocations: &stubRevocations{revoked: map[string]bool{verifiedClaims.ID: true}},
		},
		{
			name:        "revocation check failure",
			header:      "Bearer " + validToken,
			store:       &stubUserStore{user: user},
			revocations: &stubRevocations{err: errors.New("gate down")},
		},
		{
			name:   "deleted user",
			header: "Bearer " + validToken,
			store:  &stubUserStore{err: repository.ErrUserNotFound},
		},
		{
			name:   "store failure",
			header: "Bearer " + validToken,
			store:  &stubUserStore{err: errors.New("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var identity *model.Identity
			cfg := AuthConfig{
				Logger: discardLogger(),
				Codec:  codec,
				Store:  tt.store,
			}
			if tt.revocations != nil {
				cfg.Revocations = tt.revocations
			}
			handler := Authenticate(cfg)(okHandler(&identity))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if identity != nil {
				t.Error("handler must not run with an identity on rejection")
			}
			if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

// Authenticate alone only resolves the caller; an account deactivated after
// the token was issued still reaches the handler, and RequireActive is the
// layer that turns it away.
func TestAuthenticate_InactiveUserReachesHandler(t *testing.T) {
	user := testUser()
	user.IsActive = false
	codec := newMiddlewareCodec(t, nil)

	raw, err := codec.IssueAccess(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	cfg := AuthConfig{
		Logger: discardLogger(),
		Codec:  codec,
		Store:  &stubUserStore{user: user},
	}

	var identity *model.Identity
	handler := Authenticate(cfg)(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if identity == nil {
		t.Fatal("expected identity in context")
	}
	if identity.IsActive {
		t.Error("identity should carry is_active=false")
	}

	// With RequireActive stacked on top, the same request is rejected.
	identity = nil
	chained := Authenticate(cfg)(RequireActive(discardLogger())(okHandler(&identity)))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	chained.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}
	if identity != nil {
		t.Error("handler must not run for an inactive account")
	}
	if !strings.Contains(rec.Body.String(), `"code":"ACCOUNT_INACTIVE"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequireActive(t *testing.T) {
	active := testUser()
	inactive := testUser()
	inactive.IsActive = false

	tests := []struct {
		name       string
		identity   *model.Identity
		wantStatus int
	}{
		{"active account passes", model.IdentityFromUser(active), http.StatusOK},
		{"inactive account rejected", model.IdentityFromUser(inactive), http.StatusForbidden},
		{"no identity rejected", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireActive(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.identity != nil {
				req = req.WithContext(auth.ContextWithIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"scheme only", "Bearer ", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", ""},
		{"trailing space trimmed", "Bearer abc.def.ghi ", "abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := extractBearerToken(req); got != tt.want {
				t.Errorf("extractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
