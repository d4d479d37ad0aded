package setting

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/middleware"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/validation"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// GetMine returns the settings of the caller.
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFrom(r.Context())
	st, err := h.svc.Get(r.Context(), u.Username, middleware.ScopeFrom(r.Context()))
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusOK, st)
}

func (h *Handler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, middleware.UserFrom(r.Context()).Username)
}

func (h *Handler) UpdateByUsername(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, chi.URLParam(r, "username"))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, username string) {
	var in entity.Settings
	if err := validation.Decode(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	st, err := h.svc.UpdateByUsername(r.Context(), username, in, middleware.ScopeFrom(r.Context()))
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusOK, st)
}

// UpdateMyLanguage sets the caller's language from the path.
func (h *Handler) UpdateMyLanguage(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFrom(r.Context())
	st, err := h.svc.UpdateLanguage(r.Context(), u.Username, chi.URLParam(r, "language"), middleware.ScopeFrom(r.Context()))
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusOK, st)
}
