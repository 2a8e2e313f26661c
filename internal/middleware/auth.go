package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
	"github.com/authgate/authgate/internal/token"
)

// AuthConfig holds the collaborators of the identity resolver.
type AuthConfig struct {
	Logger      *slog.Logger
	Codec       *token.Codec
	Store       service.UserStore
	Revocations service.RevocationGate
	Metrics     metrics.Recorder
}

// Authenticate returns the identity-resolution middleware: bearer token ->
// verified claims -> revocation check -> user lookup -> identity in context.
// Every failure produces the same 401; the specific reason goes to logs only.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	revocations := cfg.Revocations
	if revocations == nil {
		revocations = service.NoopRevocations{}
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(reason string) {
				recorder.IncIdentityRejected()
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
			}

			raw := extractBearerToken(r)
			if raw == "" {
				reject("missing_token")
				return
			}

			claims, err := cfg.Codec.VerifyAccess(raw)
			if err != nil {
				reject("invalid_token")
				return
			}

			if claims.ID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					reject("revocation_check_failed")
					return
				}
				if revoked {
					reject("revoked_token")
					return
				}
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				reject("invalid_subject")
				return
			}

			user, err := cfg.Store.GetUserByID(r.Context(), userID)
			if err != nil {
				// Covers both a since-deleted user and a store failure;
				// neither yields a partial identity.
				reject("user_lookup_failed")
				return
			}

			recorder.IncIdentityResolved()

			ctx := auth.ContextWithIdentity(r.Context(), model.IdentityFromUser(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActive returns the second-stage gate: the token already verified,
// the account must additionally be active. Rejects with 403 so clients can
// tell "activate your account" apart from "log in again".
func RequireActive(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				writeAuthError(w)
				return
			}
			if !identity.IsActive {
				logger.Warn("inactive account rejected",
					slog.String("user_id", identity.ID.String()),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":"ACCOUNT_INACTIVE","message":"Account is not active"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// Returns empty string when the header is absent or not a bearer scheme.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`))
}
