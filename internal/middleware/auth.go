// Package middleware authenticates requests and resolves access scopes.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

// TokenCookie is the cookie carrying the auth token.
const TokenCookie = "token"

type contextKey string

const (
	userKey  contextKey = "user"
	scopeKey contextKey = "scope"
)

// TokenValidator resolves an auth token to its user.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*entity.User, error)
}

// TokenFromRequest reads the auth token from the cookie or a bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate rejects requests without a valid auth token.
func Authenticate(v TokenValidator, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := v.ValidateAccessToken(r.Context(), TokenFromRequest(r))
			if err != nil {
				response.Err(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// OptionalAuthenticate attaches the user when a valid token is presented and
// lets anonymous requests through.
func OptionalAuthenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := TokenFromRequest(r); token != "" {
				if u, err := v.ValidateAccessToken(r.Context(), token); err == nil {
					r = r.WithContext(WithUser(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// VerifyAccess resolves the scope the authenticated user holds for perm.
// Users without the permission get 403.
func VerifyAccess(perm acs.Permission, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFrom(r.Context())
			if u == nil {
				response.Err(w, r, logger, apperr.Unauthorized(apperr.CodeNoAccessToken, "token", "authentication required"))
				return
			}
			scope, ok := acs.Resolve(perm, acs.Request{UserUID: u.UID, Role: u.Role, Query: r.URL.Query()})
			if !ok {
				logger.Debugw("access.denied", "uid", u.UID, "role", u.Role, "permission", perm)
				response.Err(w, r, logger, apperr.Forbidden(apperr.CodeAccessDenied, string(perm), "access denied"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

func WithUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user or nil.
func UserFrom(ctx context.Context) *entity.User {
	u, _ := ctx.Value(userKey).(*entity.User)
	return u
}

func WithScope(ctx context.Context, s acs.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFrom returns the resolved scope, AccessDenied when none was resolved.
func ScopeFrom(ctx context.Context) acs.Scope {
	if s, ok := ctx.Value(scopeKey).(acs.Scope); ok {
		return s
	}
	return acs.AccessDenied()
}
