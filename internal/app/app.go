// Package app wires repositories, services and handlers from configuration.
package app

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/social"
	"github.com/ovaphlow/pitchfork/service-identity/internal/config"
	"github.com/ovaphlow/pitchfork/service-identity/internal/image"
	"github.com/ovaphlow/pitchfork/service-identity/internal/notify"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile"
	"github.com/ovaphlow/pitchfork/service-identity/internal/router"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting"
	"github.com/ovaphlow/pitchfork/service-identity/internal/subscriber"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user"
)

type App struct {
	Config      config.Config
	DB          *sqlx.DB
	Auth        *auth.Service
	Profiles    *profile.Service
	Settings    *setting.Service
	Subscribers *subscriber.Service
	Images      *image.Service
	Users       *user.UserService
	Sweeper     *auth.Sweeper

	logger *zap.SugaredLogger
}

// Options override collaborators, mainly for tests.
type Options struct {
	Google   social.Verifier
	Facebook social.Verifier
	Notifier notify.Notifier
	Hasher   user.PasswordHasher
}

// New builds the service graph. Third-party verifiers are only created when
// configured; opts take precedence.
func New(cfg config.Config, db *sqlx.DB, logger *zap.SugaredLogger, opts Options) *App {
	google, facebook := opts.Google, opts.Facebook
	if google == nil && cfg.GoogleClientID != "" {
		google = social.NewGoogleVerifier(cfg.GoogleIssuer, cfg.GoogleClientID, cfg.GoogleJWKSURL, nil)
	}
	if facebook == nil && cfg.FacebookEnabled && cfg.FacebookAppID != "" {
		facebook = social.NewFacebookVerifier(social.FacebookConfig{
			GraphURL:  cfg.FacebookGraphURL,
			AppID:     cfg.FacebookAppID,
			AppSecret: cfg.FacebookAppSecret,
			CacheTTL:  cfg.FacebookCacheTTL,
		}, nil)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = user.NewHasher(cfg.Production(), cfg.BcryptCost)
	}

	sessions := authrepo.NewSessionRepo(cfg.MaxSessions)
	tokens := auth.NewTokenProvider(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthTokenTTL, google, facebook)
	profiles := profile.NewService(db, sessions, hasher, notifier, profile.ResetPolicy{
		Cooldown: cfg.PasswordResetCooldown,
		CodeTTL:  cfg.PasswordResetCodeTTL,
	}, logger)

	return &App{
		Config:      cfg,
		DB:          db,
		Auth:        auth.NewService(db, tokens, sessions, profiles, hasher, cfg.RefreshTokenMaxAgeDays, logger),
		Profiles:    profiles,
		Settings:    setting.NewService(db, nil, logger),
		Subscribers: subscriber.NewService(db, sessions, logger),
		Images:      image.NewService(db, logger),
		Users:       user.NewUserService(db, nil, logger),
		Sweeper:     auth.NewSweeper(db, sessions, cfg.RefreshTokenMaxAgeDays, logger),
		logger:      logger,
	}
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler {
	cookie := auth.CookieConfig{Domain: a.Config.CookieDomain, Secure: a.Config.CookieSecure, SameSite: a.Config.SameSite()}
	redirects := profile.Redirects{
		EmailConfirmed: a.Config.EmailConfirmationRedirectURL,
		EmailExpired:   a.Config.EmailConfirmationRedirectExpiredURL,
	}
	return router.New(router.Deps{
		Tokens:         a.Auth,
		Auth:           auth.NewHandler(a.Auth, cookie, a.logger),
		Profiles:       profile.NewHandler(a.Profiles, redirects, a.logger),
		Settings:       setting.NewHandler(a.Settings, a.logger),
		Subscribers:    subscriber.NewHandler(a.Subscribers, a.logger),
		Images:         image.NewHandler(a.Images, a.logger),
		AllowedOrigins:    a.Config.CORSAllowedOrigins,
		TrustProxyHeaders: a.Config.TrustProxyHeaders,
	}, a.logger)
}

// Close waits for background work started by requests.
func (a *App) Close() {
	a.Sweeper.Stop()
	a.Auth.Wait()
}
