package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/social"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/utilities"
)

const DefaultAuthTokenTTL = 30 * time.Minute

// Claims is the decoded payload of an auth token.
type Claims struct {
	UserUID string `json:"userUID"`
	jwt.RegisteredClaims
}

// TokenProvider issues and decodes auth tokens, mints refresh tokens and
// verifies third-party identity tokens.
type TokenProvider struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	google   social.Verifier
	facebook social.Verifier
	now      func() time.Time
}

func NewTokenProvider(secret, issuer string, ttl time.Duration, google, facebook social.Verifier) *TokenProvider {
	if ttl <= 0 {
		ttl = DefaultAuthTokenTTL
	}
	return &TokenProvider{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		google:   google,
		facebook: facebook,
		now:      time.Now,
	}
}

// AuthTokenTTL is the lifetime of issued auth tokens.
func (p *TokenProvider) AuthTokenTTL() time.Duration { return p.ttl }

// RefreshTokenHash binds a refresh token id to the client fingerprint.
// Fields are length-prefixed so shifting bytes between them changes the hash.
func (p *TokenProvider) RefreshTokenHash(tokenID string, h entity.HeaderInfo) string {
	mac := hmac.New(sha256.New, p.secret)
	var size [8]byte
	for _, field := range []string{tokenID, h.IP, h.UserAgent} {
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		mac.Write(size[:])
		mac.Write([]byte(field))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// RefreshToken mints a new opaque refresh token id with its fingerprint hash.
func (p *TokenProvider) RefreshToken(h entity.HeaderInfo) entity.RefreshToken {
	id := utilities.NewKSUID()
	return entity.RefreshToken{Token: id, Hash: p.RefreshTokenHash(id, h)}
}

// AuthToken signs a short-lived token carrying the user uid.
func (p *TokenProvider) AuthToken(userUID string) (string, error) {
	now := p.now()
	claims := Claims{
		UserUID: userUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   userUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// DecodeAuthToken verifies signature and expiry and returns the claims.
func (p *TokenProvider) DecodeAuthToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized(apperr.CodeTokenExpired, "token", "auth token has expired")
		}
		return nil, apperr.Unauthorized(apperr.CodeInvalidToken, "token", "invalid auth token")
	}
	if claims.UserUID == "" {
		return nil, apperr.Unauthorized(apperr.CodeInvalidToken, "token", "invalid auth token")
	}
	return claims, nil
}

// DecodeGoogleToken verifies a Google ID token.
func (p *TokenProvider) DecodeGoogleToken(ctx context.Context, token string) (*social.Identity, error) {
	return p.decodeSocial(ctx, p.google, token, "google")
}

// DecodeFacebookToken verifies a Facebook access token.
func (p *TokenProvider) DecodeFacebookToken(ctx context.Context, token string) (*social.Identity, error) {
	return p.decodeSocial(ctx, p.facebook, token, "facebook")
}

func (p *TokenProvider) decodeSocial(ctx context.Context, v social.Verifier, token, source string) (*social.Identity, error) {
	if v == nil {
		return nil, apperr.Unauthorized(apperr.CodeExternalVerify, source, source+" login is not configured")
	}
	id, err := v.Verify(ctx, token)
	if err != nil {
		e := apperr.Unauthorized(apperr.CodeExternalVerify, source, "could not verify "+source+" token")
		e.Err = err
		return nil, e
	}
	return id, nil
}
