package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/service"
)

// SessionParser validates bearer tokens; satisfied by *auth.TokenIssuer.
type SessionParser interface {
	Parse(token string) (*model.Session, error)
}

// RoleLookup returns an account's current role; satisfied by
// *service.AccountService.
type RoleLookup interface {
	CurrentRole(ctx context.Context, accountID string) (model.Role, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Tokens SessionParser
	// Roles refreshes the role carried by the token. Optional.
	Roles RoleLookup
}

// Auth returns a middleware that requires a valid bearer token and injects
// the caller's session into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication_failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			session, err := cfg.Tokens.Parse(token)
			if err != nil {
				cfg.Logger.Warn("authentication_failed",
					slog.String("reason", "invalid_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			if cfg.Roles != nil {
				role, err := cfg.Roles.CurrentRole(r.Context(), session.AccountID)
				switch {
				case err == nil:
					session.Role = role
				case errors.Is(err, service.ErrAccountNotFound):
					cfg.Logger.Warn("authentication_failed",
						slog.String("reason", "unknown_account"),
						slog.String("account_id", session.AccountID),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
					return
				default:
					// Keep the role from the token while the store is down.
					cfg.Logger.Warn("role_refresh_failed",
						slog.String("account_id", session.AccountID),
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
			}

			ctx := auth.ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the admin role.
// Must be applied after Auth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.SessionFromContext(r.Context())
			if session == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !session.IsAdmin() {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken reads "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="petlink"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
}
