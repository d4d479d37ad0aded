package image

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/image/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/middleware"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
)

const formField = "image"

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Upload accepts a multipart form with the file under "image" and optional
// "entity" and "isPublic" fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSize+1<<20)
	if err := r.ParseMultipartForm(MaxSize); err != nil {
		response.Err(w, r, h.logger, apperr.Validation(apperr.CodeUnknownValidation, formField, "malformed multipart form"))
		return
	}
	file, header, err := r.FormFile(formField)
	if err != nil {
		response.Err(w, r, h.logger, apperr.Validation(apperr.CodeFieldRequired, formField, "image is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxSize+1))
	if err != nil {
		response.Err(w, r, h.logger, apperr.Internal(err, "read upload"))
		return
	}
	public, _ := strconv.ParseBool(r.FormValue("isPublic"))
	u := middleware.UserFrom(r.Context())
	img, err := h.svc.Save(r.Context(), entity.Image{
		OriginalName: header.Filename,
		Entity:       r.FormValue("entity"),
		IsPublic:     public,
		Data:         data,
	}, middleware.ScopeFrom(r.Context()), u.UID)
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusCreated, img)
}

// Get serves the raw image bytes.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := ""
	if u := middleware.UserFrom(r.Context()); u != nil {
		viewer = u.UID
	}
	img, err := h.svc.Get(r.Context(), chi.URLParam(r, "uid"), viewer)
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if img.IsPublic {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, no-store")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
