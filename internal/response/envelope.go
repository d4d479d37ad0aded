// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
)

type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Error is the client-facing form of an apperr.Error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// NewMeta stamps the request id set by chi, or a fresh one.
func NewMeta(r *http.Request) Meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}
	return Meta{RequestID: id, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Success writes data with the given status.
func Success(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Envelope{Data: data, Meta: NewMeta(r)})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes err as an error envelope. Unclassified errors become 500 and are
// logged; their text never reaches the client.
func Err(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err, "internal error")
	}
	if e.Kind == apperr.KindInternal {
		if logger != nil {
			logger.Errorw("http.error", "path", r.URL.Path, "err", err)
		}
		e = &apperr.Error{Kind: apperr.KindInternal, Code: apperr.CodeInternal, Message: "internal error"}
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	writeJSON(w, e.Kind.HTTPStatus(), Envelope{
		Error: &Error{Code: string(e.Code), Message: msg, Source: e.Source, Details: e.Details},
		Meta:  NewMeta(r),
	})
}
