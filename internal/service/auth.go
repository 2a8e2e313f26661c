// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/password"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/token"
)

// Service errors.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable to prevent account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive means the password was correct but the account is
	// not activated. Distinguishable from ErrInvalidCredentials: the caller
	// has already proven knowledge of the password.
	ErrAccountInactive = errors.New("account is not active")

	// ErrUnauthenticated covers every token-path failure: missing, invalid,
	// expired, or revoked token, or a token referencing a missing user.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// UserStore is the persistence capability the auth core consumes.
// *repository.Repository satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// AuthService authenticates credentials, registers users, and exchanges
// credentials and refresh tokens for signed access tokens.
type AuthService struct {
	store       UserStore
	codec       *token.Codec
	revocations RevocationGate
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewAuthService creates an AuthService. A nil revocation gate falls back
// to the fail-open no-op; a nil recorder falls back to the no-op recorder.
func NewAuthService(store UserStore, codec *token.Codec, revocations RevocationGate, logger *slog.Logger, recorder metrics.Recorder) *AuthService {
	if revocations == nil {
		revocations = NoopRevocations{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:       store,
		codec:       codec,
		revocations: revocations,
		logger:      logger,
		metrics:     recorder,
	}
}

// AccessTTL exposes the configured access-token lifetime for responses.
func (s *AuthService) AccessTTL() time.Duration {
	return s.codec.AccessTTL()
}

// RegisterInput holds the fields required to create a user.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register validates the input, hashes the password, and persists a new
// active user. A duplicate email surfaces repository.ErrEmailExists.
// The returned identity never includes the hash.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.Identity, error) {
	if err := ValidateRegistration(input); err != nil {
		s.metrics.IncRegistrationRejected("validation")
		return nil, err
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        NormalizeEmail(input.Email),
		PasswordHash: hash,
		IsActive:     true,
		Access:       true,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncRegistrationRejected("duplicate")
		}
		return nil, err
	}

	s.metrics.IncUserRegistered()
	s.logger.Info("user_registered", "user_id", user.ID.String())

	return model.IdentityFromUser(user), nil
}

// Authenticate validates an email/password pair against the store.
// It is read-only: no counters or last-login fields are mutated.
func (s *AuthService) Authenticate(ctx context.Context, email, plaintext string) (*model.Identity, error) {
	user, err := s.authenticateUser(ctx, email, plaintext)
	if err != nil {
		return nil, err
	}
	return model.IdentityFromUser(user), nil
}

// Login authenticates credentials and mints a token pair for the user.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (*token.Pair, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLoginDuration(time.Since(start))
	}()

	user, err := s.authenticateUser(ctx, email, plaintext)
	if err != nil {
		return nil, err
	}

	pair, err := s.codec.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.metrics.IncLoginSuccess()
	s.metrics.IncTokenIssued(token.TypeAccess)
	s.metrics.IncTokenIssued(token.TypeRefresh)
	s.logger.Info("login_succeeded", "user_id", user.ID.String())

	return pair, nil
}

// Refresh verifies a refresh token, re-resolves the user, and mints a
// fresh access token. Every failure collapses to ErrUnauthenticated.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*token.Pair, error) {
	claims, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		s.logger.Warn("refresh_rejected", "reason", "invalid_token", "error", err.Error())
		return nil, ErrUnauthenticated
	}

	if claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("refresh_rejected", "reason", "revocation_check_failed", "error", err.Error())
			return nil, ErrUnauthenticated
		}
		if revoked {
			s.logger.Warn("refresh_rejected", "reason", "revoked", "jti", claims.ID)
			return nil, ErrUnauthenticated
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Warn("refresh_rejected", "reason", "bad_subject")
		return nil, ErrUnauthenticated
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("refresh_rejected", "reason", "user_lookup_failed")
		return nil, ErrUnauthenticated
	}

	if !user.IsActive {
		s.logger.Warn("refresh_rejected", "reason", "inactive_account", "user_id", user.ID.String())
		return nil, ErrUnauthenticated
	}

	access, err := s.codec.IssueAccess(user)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.IncTokenRefreshed()
	s.metrics.IncTokenIssued(token.TypeAccess)
	s.logger.Info("token_refreshed", "user_id", user.ID.String())

	return &token.Pair{
		AccessToken: access,
		ExpiresIn:   s.codec.AccessTTL(),
	}, nil
}

// authenticateUser resolves and checks the credential pair, returning the
// full user record for token minting.
func (s *AuthService) authenticateUser(ctx context.Context, email, plaintext string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn a hash comparison so an unknown email costs the same
			// as a wrong password.
			password.DummyVerify(plaintext)
			s.metrics.IncLoginFailure("credentials")
			s.logger.Warn("login_failed", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		s.metrics.IncLoginFailure("credentials")
		s.logger.Warn("login_failed", "reason", "wrong_password", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.metrics.IncLoginFailure("inactive")
		s.logger.Warn("login_failed", "reason", "inactive_account", "user_id", user.ID.String())
		return nil, ErrAccountInactive
	}

	return user, nil
}
