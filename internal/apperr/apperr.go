// Package apperr carries the failure taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindForbidden
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code is a stable machine-readable error code consumed by clients.
type Code string

const (
	CodeExist                 Code = "EXIST_ERROR"
	CodeDontMatch             Code = "DONT_MATCH_ERROR"
	CodeUserBanned            Code = "USER_BANNED"
	CodeEmailNotConfirmed     Code = "EMAIL_IS_NOT_CONFIRMED"
	CodeNoEmailOnFacebook     Code = "NO_EMAIL_ON_FACEBOOK"
	CodeNoAccessToken         Code = "NO_ACCESS_TOKEN"
	CodeInvalidToken          Code = "INVALID_TOKEN"
	CodeTokenExpired          Code = "token-expired"
	CodeRefreshToken          Code = "REFRESH_TOKEN_ERROR"
	CodeExternalVerify        Code = "EXTERNAL_VERIFY_ERROR"
	CodeEntityNotFound        Code = "ENTITY_NOT_FOUND_ERROR"
	CodeFieldRequired         Code = "FIELD_REQUIRED_VALIDATION_ERROR"
	CodeUnknownValidation     Code = "UNKNOWN_VALIDATION_ERROR"
	CodeTooManyResendingCodes Code = "TOO_MANY_RESENDING_CODE_ERROR"
	CodeAccessDenied          Code = "ACCESS_DENIED"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// Error is an explicit, classified failure. Source names the flow or field
// that triggered it so clients can attribute the error.
type Error struct {
	Kind    Kind
	Code    Code
	Source  string
	Message string
	// Details carries structured context such as per-field validation errors.
	Details any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Source != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Source)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// WithSource returns a copy attributed to another flow.
func (e *Error) WithSource(source string) *Error {
	cp := *e
	cp.Source = source
	return &cp
}

// WithDetails returns a copy carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func newError(kind Kind, code Code, source, message string) *Error {
	return &Error{Kind: kind, Code: code, Source: source, Message: message}
}

func Validation(code Code, source, message string) *Error {
	return newError(KindValidation, code, source, message)
}

func Conflict(code Code, source, message string) *Error {
	return newError(KindConflict, code, source, message)
}

func Forbidden(code Code, source, message string) *Error {
	return newError(KindForbidden, code, source, message)
}

func Unauthorized(code Code, source, message string) *Error {
	return newError(KindUnauthorized, code, source, message)
}

func NotFound(code Code, source, message string) *Error {
	return newError(KindNotFound, code, source, message)
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
