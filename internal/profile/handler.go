package profile

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/middleware"
	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/validation"
)

// Redirects are the pages a browser lands on after following an email
// confirmation link. Empty values answer with JSON instead.
type Redirects struct {
	EmailConfirmed string
	EmailExpired   string
}

type Handler struct {
	svc       *Service
	redirects Redirects
	logger    *zap.SugaredLogger
}

func NewHandler(svc *Service, redirects Redirects, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, redirects: redirects, logger: logger}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ownEmailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,min=5,max=20"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type ownPasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type newPasswordRequest struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	response.Err(w, r, h.logger, err)
}

func caller(r *http.Request) (*userentity.User, acs.Scope) {
	return middleware.UserFrom(r.Context()), middleware.ScopeFrom(r.Context())
}

// My profile

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	u, _ := caller(r)
	p, err := h.svc.GetMyProfile(r.Context(), u.UID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) UpdateMyPerson(w http.ResponseWriter, r *http.Request) {
	u, _ := caller(r)
	h.updatePerson(w, r, u.Username)
}

func (h *Handler) UpdateMyPhone(w http.ResponseWriter, r *http.Request) {
	u, _ := caller(r)
	h.updatePhone(w, r, u.Username)
}

func (h *Handler) ConfirmMyPhone(w http.ResponseWriter, r *http.Request) {
	u, scope := caller(r)
	p, err := h.svc.ConfirmPhone(r.Context(), u.Username, chi.URLParam(r, "code"), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) UpdateMyEmail(w http.ResponseWriter, r *http.Request) {
	u, scope := caller(r)
	var in ownEmailRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdateOwnEmail(r.Context(), u.Username, in.Password, in.Email, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	u, scope := caller(r)
	var in ownPasswordRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.UpdateOwnPassword(r.Context(), u.Username, in.OldPassword, in.NewPassword, scope); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

// DeleteMine only needs authentication; the scope is always the caller.
func (h *Handler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	u, _ := caller(r)
	if err := h.svc.DeleteProfile(r.Context(), u.Username, acs.EditOwnObject{UID: u.UID}); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	uid, err := h.svc.ConfirmEmail(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound && h.redirects.EmailExpired != "" {
			http.Redirect(w, r, h.redirects.EmailExpired, http.StatusFound)
			return
		}
		h.fail(w, r, err)
		return
	}
	if h.redirects.EmailConfirmed != "" {
		http.Redirect(w, r, h.redirects.EmailConfirmed, http.StatusFound)
		return
	}
	response.Success(w, r, http.StatusOK, map[string]string{"uid": uid})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), in.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) SetNewPassword(w http.ResponseWriter, r *http.Request) {
	var in newPasswordRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.SetNewPassword(r.Context(), in.Code, in.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

// Profiles

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	q := r.URL.Query()
	f := entity.Filter{
		Search: q.Get("search"),
		Role:   userentity.Role(q.Get("role")),
		Status: userentity.SystemStatus(q.Get("status")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	list, err := h.svc.List(r.Context(), f, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, list)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	var in entity.NewProfile
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.Language = userentity.ParseLanguage(r.URL.Query().Get("language"))
	p, err := h.svc.Create(r.Context(), in, scope, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusCreated, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "email"), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	if err := h.svc.DeleteProfile(r.Context(), chi.URLParam(r, "username"), scope); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	h.updatePerson(w, r, chi.URLParam(r, "username"))
}

func (h *Handler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	h.updatePhone(w, r, chi.URLParam(r, "username"))
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	var in emailRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdateEmail(r.Context(), chi.URLParam(r, "username"), in.Email, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	_, scope := caller(r)
	var in passwordRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.UpdatePassword(r.Context(), chi.URLParam(r, "username"), in.Password, scope); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) UnlinkGoogle(w http.ResponseWriter, r *http.Request) {
	h.unlink(w, r, userentity.ProviderGoogle)
}

func (h *Handler) UnlinkFacebook(w http.ResponseWriter, r *http.Request) {
	h.unlink(w, r, userentity.ProviderFacebook)
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request, provider userentity.SocialProvider) {
	_, scope := caller(r)
	if err := h.svc.UnlinkSocial(r.Context(), chi.URLParam(r, "email"), provider, scope); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) updatePerson(w http.ResponseWriter, r *http.Request, username string) {
	u, scope := caller(r)
	var in personentity.Person
	if err := validation.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdatePersonByUsername(r.Context(), username, in, scope, u.UID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}

func (h *Handler) updatePhone(w http.ResponseWriter, r *http.Request, username string) {
	_, scope := caller(r)
	var in phoneRequest
	if err := validation.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdatePhone(r.Context(), username, in.Phone, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, http.StatusOK, p)
}
