package auth

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/middleware"
	profileentity "github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/validation"
)

// CookieConfig controls the auth token cookie.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

type Handler struct {
	svc    *Service
	cookie CookieConfig
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, cookie CookieConfig, logger *zap.SugaredLogger) *Handler {
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return &Handler{svc: svc, cookie: cookie, logger: logger}
}

type directLoginRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DeviceToken string `json:"deviceToken"`
}

type socialLoginRequest struct {
	Token       string `json:"token" validate:"required"`
	DeviceToken string `json:"deviceToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	RefreshToken string `json:"refreshToken"`
	IsNew        *bool  `json:"isNew,omitempty"`
}

// HeaderInfo fingerprints the client. RemoteAddr has already been rewritten
// by the real ip middleware when a proxy header was present.
func HeaderInfo(r *http.Request) entity.HeaderInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return entity.HeaderInfo{IP: ip, UserAgent: r.UserAgent()}
}

func language(r *http.Request) userentity.Language {
	if l := r.URL.Query().Get("language"); l != "" {
		return userentity.ParseLanguage(l)
	}
	return userentity.ParseLanguage(r.Header.Get("Accept-Language"))
}

func (h *Handler) Registration(w http.ResponseWriter, r *http.Request) {
	var in profileentity.NewProfile
	if err := validation.DecodeJSON(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	if in.Role == "" {
		in.Role = userentity.RolePrivate
	}
	if err := validation.Struct(&in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Register(r.Context(), in, language(r))
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusCreated, p)
}

func (h *Handler) LoginDirect(w http.ResponseWriter, r *http.Request) {
	var in directLoginRequest
	if err := validation.Decode(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	tokens, err := h.svc.Login(r.Context(), in.Username, in.Password, HeaderInfo(r), in.DeviceToken)
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	h.issue(w, r, tokens, false)
}

func (h *Handler) LoginGoogle(w http.ResponseWriter, r *http.Request) {
	h.socialLogin(w, r, h.svc.LoginGoogle)
}

func (h *Handler) LoginFacebook(w http.ResponseWriter, r *http.Request) {
	h.socialLogin(w, r, h.svc.LoginFacebook)
}

type socialLoginFunc func(ctx context.Context, token string, hi entity.HeaderInfo, lang userentity.Language, deviceToken string) (*entity.Tokens, error)

func (h *Handler) socialLogin(w http.ResponseWriter, r *http.Request, login socialLoginFunc) {
	var in socialLoginRequest
	if err := validation.Decode(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	tokens, err := login(r.Context(), in.Token, HeaderInfo(r), language(r), in.DeviceToken)
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	h.issue(w, r, tokens, true)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := validation.Decode(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	tokens, err := h.svc.Refresh(r.Context(), in.RefreshToken, HeaderInfo(r))
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	h.issue(w, r, tokens, false)
}

// Logout always clears the cookie, even when revocation fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	_ = validation.DecodeJSON(r, &in)
	if err := h.svc.Logout(r.Context(), in.RefreshToken, HeaderInfo(r)); err != nil {
		h.logger.Warnw("auth.logout.failed", "err", err)
	}
	h.setCookie(w, "", -1)
	response.NoContent(w)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, tokens *entity.Tokens, social bool) {
	h.setCookie(w, tokens.AuthToken, int(h.svc.Tokens().AuthTokenTTL()/time.Second))
	out := tokenResponse{RefreshToken: tokens.RefreshToken.Token}
	if social {
		isNew := tokens.IsNew
		out.IsNew = &isNew
	}
	response.Success(w, r, http.StatusOK, out)
}

func (h *Handler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: h.cookie.SameSite,
	})
}
