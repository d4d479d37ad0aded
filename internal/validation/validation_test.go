package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&loginRequest{Username: "a@x.com", Password: "pw"}))

	err := Struct(&loginRequest{Password: "pw"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeFieldRequired, e.Code)
	assert.Equal(t, "username", e.Source)

	err = Struct(&loginRequest{Username: "nope"})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnknownValidation, e.Code)
	fields, ok := e.Details.([]FieldError)
	require.True(t, ok)
	assert.Equal(t, []FieldError{
		{Field: "username", Message: "username must be a valid email"},
		{Field: "password", Message: "password is required"},
	}, fields)
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("language", "en", "oneof=ua en ru"))
	err := Var("language", "de", "oneof=ua en ru")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnknownValidation))
	assert.True(t, apperr.HasCode(Var("code", "", "required"), apperr.CodeFieldRequired))
}

func TestDecode(t *testing.T) {
	var req loginRequest
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"a@x.com","password":"pw"}`))
	require.NoError(t, Decode(r, &req))
	assert.Equal(t, "a@x.com", req.Username)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"username":`))
	err := Decode(r, &loginRequest{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	r = httptest.NewRequest("POST", "/", strings.NewReader(``))
	assert.True(t, apperr.HasCode(Decode(r, &loginRequest{}), apperr.CodeFieldRequired))
}
