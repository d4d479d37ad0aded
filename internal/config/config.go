// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

const EnvProduction = "production"

type Config struct {
	AppEnv   string          `envconfig:"APP_ENV" default:"development"`
	HTTPAddr string          `envconfig:"HTTP_ADDR" default:"0.0.0.0:8431"`
	Database database.Config `envconfig:"DATABASE"`

	AuthSecret             string        `envconfig:"AUTH_SECRET" required:"true"`
	AuthIssuer             string        `envconfig:"AUTH_ISSUER" default:"service-identity"`
	AuthTokenTTL           time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"30m"`
	RefreshTokenMaxAgeDays int           `envconfig:"REFRESH_TOKEN_MAX_AGE_DAYS" default:"60"`
	MaxSessions            int           `envconfig:"MAX_SESSIONS" default:"5"`
	BcryptCost             int           `envconfig:"BCRYPT_COST" default:"10"`

	CookieDomain   string `envconfig:"COOKIE_DOMAIN"`
	CookieSecure   bool   `envconfig:"COOKIE_SECURE" default:"false"`
	CookieSameSite string `envconfig:"COOKIE_SAMESITE" default:"lax"`

	GoogleClientID    string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleIssuer      string        `envconfig:"GOOGLE_ISSUER"`
	GoogleJWKSURL     string        `envconfig:"GOOGLE_JWKS_URL"`
	FacebookEnabled   bool          `envconfig:"FACEBOOK_ENABLED" default:"true"`
	FacebookAppID     string        `envconfig:"FACEBOOK_APP_ID"`
	FacebookAppSecret string        `envconfig:"FACEBOOK_APP_SECRET"`
	FacebookGraphURL  string        `envconfig:"FACEBOOK_GRAPH_URL"`
	FacebookCacheTTL  time.Duration `envconfig:"FACEBOOK_CACHE_TTL" default:"5m"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	TrustProxyHeaders  bool     `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	EmailConfirmationRedirectURL        string `envconfig:"EMAIL_CONFIRMATION_REDIRECT_URL"`
	EmailConfirmationRedirectExpiredURL string `envconfig:"EMAIL_CONFIRMATION_REDIRECT_EXPIRED_URL"`

	PasswordResetCooldown time.Duration `envconfig:"PASSWORD_RESET_COOLDOWN" default:"1m"`
	PasswordResetCodeTTL  time.Duration `envconfig:"PASSWORD_RESET_CODE_TTL" default:"1h"`
	SessionSweepSchedule  string        `envconfig:"SESSION_SWEEP_SCHEDULE" default:"@every 1h"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("config: AUTH_SECRET must not be empty")
	}
	if cfg.FacebookAppID != "" && cfg.FacebookAppSecret == "" {
		return Config{}, fmt.Errorf("config: FACEBOOK_APP_SECRET is required with FACEBOOK_APP_ID")
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.AppEnv == EnvProduction }

// SameSite maps COOKIE_SAMESITE to its http constant, lax when unknown.
func (c Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
