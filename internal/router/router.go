package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth"
	"github.com/ovaphlow/pitchfork/service-identity/internal/image"
	"github.com/ovaphlow/pitchfork/service-identity/internal/middleware"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile"
	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting"
	"github.com/ovaphlow/pitchfork/service-identity/internal/subscriber"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http.request",
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			// HSTS only makes sense once the request arrived over TLS.
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers and collaborators mounted by New.
type Deps struct {
	Tokens         middleware.TokenValidator
	Auth           *auth.Handler
	Profiles       *profile.Handler
	Settings       *setting.Handler
	Subscribers    *subscriber.Handler
	Images         *image.Handler
	AllowedOrigins []string
	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them: the IP
	// is half of the refresh token fingerprint.
	TrustProxyHeaders bool
}

// New builds the chi router serving every endpoint under /api.
func New(d Deps, logger *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if d.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(LoggingMiddleware(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	authenticate := middleware.Authenticate(d.Tokens, logger)
	access := func(p acs.Permission) func(http.Handler) http.Handler {
		return middleware.VerifyAccess(p, logger)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			response.Success(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/registration", d.Auth.Registration)
			r.Post("/login/direct", d.Auth.LoginDirect)
			r.Post("/login/google", d.Auth.LoginGoogle)
			r.Post("/login/facebook", d.Auth.LoginFacebook)
			r.Post("/refresh", d.Auth.Refresh)
			r.Post("/logout", d.Auth.Logout)
		})

		r.Route("/user-profile", func(r chi.Router) {
			r.Route("/my-profile", func(r chi.Router) {
				r.Get("/email-confirmation/{code}", d.Profiles.ConfirmEmail)
				r.Post("/reset-password", d.Profiles.ResetPassword)
				r.Post("/set-new-password", d.Profiles.SetNewPassword)

				r.Group(func(r chi.Router) {
					r.Use(authenticate)
					r.Delete("/", d.Profiles.DeleteMine)

					r.Group(func(r chi.Router) {
						r.Use(access(acs.PermOwnProfile))
						r.Get("/", d.Profiles.GetMine)
						r.Put("/person", d.Profiles.UpdateMyPerson)
						r.Get("/user-details", d.Settings.GetMine)
						r.Put("/user-details", d.Settings.UpdateMine)
						r.Put("/user-language/{language}", d.Settings.UpdateMyLanguage)
						r.Put("/phone", d.Profiles.UpdateMyPhone)
						r.Post("/phone-confirmation/{code}", d.Profiles.ConfirmMyPhone)
						r.Put("/email", d.Profiles.UpdateMyEmail)
						r.Put("/password", d.Profiles.UpdateMyPassword)
					})
				})
			})

			r.Route("/profiles", func(r chi.Router) {
				r.Use(authenticate)
				r.With(access(acs.PermUnlinkSocialNetwork)).Put("/unlink-facebook/{email}", d.Profiles.UnlinkFacebook)
				r.With(access(acs.PermUnlinkSocialNetwork)).Put("/unlink-google/{email}", d.Profiles.UnlinkGoogle)

				r.Group(func(r chi.Router) {
					r.Use(access(acs.PermUserProfiles))
					r.Get("/", d.Profiles.List)
					r.Post("/", d.Profiles.Create)
					r.Get("/{email}", d.Profiles.Get)
					r.Delete("/{username}", d.Profiles.Delete)
					r.Put("/{username}/person", d.Profiles.UpdatePerson)
					r.Put("/{username}/user-details", d.Settings.UpdateByUsername)
					r.Put("/{username}/email", d.Profiles.UpdateEmail)
					r.Put("/{username}/phone", d.Profiles.UpdatePhone)
					r.Put("/{username}/password", d.Profiles.UpdatePassword)
				})
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.With(authenticate, access(acs.PermSaveImage)).Post("/", d.Images.Upload)
			r.With(middleware.OptionalAuthenticate(d.Tokens)).Get("/{uid}", d.Images.Get)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(authenticate, access(acs.PermModeration))
			r.Post("/device-tokens", d.Subscribers.DeviceTokens)
			r.Get("/new-poll", d.Subscribers.NewPoll)
		})
	})
	return r
}
