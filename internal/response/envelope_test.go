package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]string{"uid": "u1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	m := decode(t, rec)
	assert.Equal(t, map[string]any{"uid": "u1"}, m["data"])
	assert.Nil(t, m["error"])
	meta := m["meta"].(map[string]any)
	assert.NotEmpty(t, meta["requestId"])
	assert.NotEmpty(t, meta["timestamp"])
}

func TestErr_Classified(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperr.Validation(apperr.CodeFieldRequired, "email", "email is required").WithDetails([]string{"email"})
	Err(rec, httptest.NewRequest(http.MethodPost, "/", nil), zap.NewNop().Sugar(), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m := decode(t, rec)
	assert.Nil(t, m["data"])
	e := m["error"].(map[string]any)
	assert.Equal(t, "FIELD_REQUIRED_VALIDATION_ERROR", e["code"])
	assert.Equal(t, "email", e["source"])
	assert.Equal(t, []any{"email"}, e["details"])
}

func TestErr_HidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	Err(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", e["code"])
	assert.Equal(t, "internal error", e["message"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestMeta_UsesRequestID(t *testing.T) {
	var meta Meta
	h := chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta = NewMeta(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "req-42", meta.RequestID)
}
