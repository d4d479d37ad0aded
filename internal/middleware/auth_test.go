package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

type fakeValidator map[string]*entity.User

func (f fakeValidator) ValidateAccessToken(_ context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized(apperr.CodeNoAccessToken, "token", "no access token")
	}
	u, ok := f[token]
	if !ok {
		return nil, apperr.Unauthorized(apperr.CodeInvalidToken, "token", "invalid token")
	}
	return u, nil
}

var validator = fakeValidator{
	"admin":   {UID: "u-admin", Role: entity.RoleAdministrator},
	"private": {UID: "u-private", Role: entity.RolePrivate},
	"deleted": {UID: "u-deleted", Role: entity.RoleDeleted},
}

func chain(perm acs.Permission) http.Handler {
	log := zap.NewNop().Sugar()
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := ScopeFrom(r.Context())
		uid, _ := s.OwnerUID()
		w.Header().Set("X-Full", map[bool]string{true: "1", false: "0"}[s.FullAccess()])
		w.Header().Set("X-Owner", uid)
		w.WriteHeader(http.StatusOK)
	})
	return Authenticate(validator, log)(VerifyAccess(perm, log)(final))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func TestAuthenticate(t *testing.T) {
	h := chain(acs.PermOwnProfile)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(apperr.CodeNoAccessToken), errorCode(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(apperr.CodeInvalidToken), errorCode(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "private"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-private", rec.Header().Get("X-Owner"))
}

func TestVerifyAccess(t *testing.T) {
	tests := []struct {
		token  string
		perm   acs.Permission
		status int
		full   string
	}{
		{"admin", acs.PermUserProfiles, http.StatusOK, "1"},
		{"private", acs.PermUserProfiles, http.StatusForbidden, ""},
		{"deleted", acs.PermOwnProfile, http.StatusForbidden, ""},
		{"private", acs.PermOwnProfile, http.StatusOK, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.token+"/"+string(tt.perm), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "bearer "+tt.token)
			rec := httptest.NewRecorder()
			chain(tt.perm).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.full, rec.Header().Get("X-Full"))
			} else {
				assert.Equal(t, string(apperr.CodeAccessDenied), errorCode(t, rec))
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	var seen *entity.User
	h := OptionalAuthenticate(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "u-admin", seen.UID)

	assert.True(t, acs.Denied(ScopeFrom(context.Background())))
}
