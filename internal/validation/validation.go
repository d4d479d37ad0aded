// Package validation decodes request bodies and checks them against struct tags.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates v. The returned error is an apperr validation error whose
// source is the first offending field and whose details list every field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(apperr.CodeUnknownValidation, "body", err.Error())
	}
	fields := make([]FieldError, 0, len(verrs))
	code := apperr.CodeUnknownValidation
	for i, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: message(fe)})
		if i == 0 && fe.Tag() == "required" {
			code = apperr.CodeFieldRequired
		}
	}
	return apperr.Validation(code, fields[0].Field, fields[0].Message).WithDetails(fields)
}

// Var validates a single value, e.g. a path parameter.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		code := apperr.CodeUnknownValidation
		if verrs[0].Tag() == "required" {
			code = apperr.CodeFieldRequired
		}
		return apperr.Validation(code, field, field+" "+describe(verrs[0].Tag(), verrs[0].Param()))
	}
	return apperr.Validation(apperr.CodeUnknownValidation, field, err.Error())
}

// Decode reads a JSON body into dst and validates it. An empty body decodes
// to the zero value before validation.
func Decode(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return err
	}
	return Struct(dst)
}

// DecodeJSON reads a JSON body into dst without validating it.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation(apperr.CodeUnknownValidation, "body", "malformed JSON body")
	}
	return nil
}

func message(fe validator.FieldError) string {
	return fe.Field() + " " + describe(fe.Tag(), fe.Param())
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s long", param)
	case "max":
		return fmt.Sprintf("must be at most %s long", param)
	case "oneof":
		return "must be one of " + param
	default:
		return "is invalid (" + tag + ")"
	}
}
