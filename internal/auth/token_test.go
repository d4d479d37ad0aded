package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/social"
)

func TestRefreshTokenHash_BindsFingerprint(t *testing.T) {
	p := NewTokenProvider("secret", "test", 0, nil, nil)
	h := entity.HeaderInfo{IP: "1.2.3.4", UserAgent: "ua"}

	rt := p.RefreshToken(h)
	assert.NotEmpty(t, rt.Token)
	assert.Equal(t, rt.Hash, p.RefreshTokenHash(rt.Token, h))
	assert.NotEqual(t, rt.Hash, p.RefreshTokenHash(rt.Token, entity.HeaderInfo{IP: "1.2.3.5", UserAgent: "ua"}))
	assert.NotEqual(t, rt.Hash, p.RefreshTokenHash(rt.Token, entity.HeaderInfo{IP: "1.2.3.4", UserAgent: "other"}))

	other := NewTokenProvider("another", "test", 0, nil, nil)
	assert.NotEqual(t, rt.Hash, other.RefreshTokenHash(rt.Token, h))

	assert.NotEqual(t, rt.Token, p.RefreshToken(h).Token)
}

func TestRefreshTokenHash_FieldBoundaries(t *testing.T) {
	p := NewTokenProvider("secret", "test", 0, nil, nil)
	a := p.RefreshTokenHash("tok", entity.HeaderInfo{IP: "10.0.0.1", UserAgent: "1x"})
	b := p.RefreshTokenHash("tok", entity.HeaderInfo{IP: "10.0.0.11", UserAgent: "x"})
	assert.NotEqual(t, a, b)

	c := p.RefreshTokenHash("tok1", entity.HeaderInfo{IP: "0.0.0.0", UserAgent: "ua"})
	d := p.RefreshTokenHash("tok", entity.HeaderInfo{IP: "10.0.0.0", UserAgent: "ua"})
	assert.NotEqual(t, c, d)
}

func TestAuthToken_RoundTrip(t *testing.T) {
	p := NewTokenProvider("secret", "test", 0, nil, nil)
	assert.Equal(t, DefaultAuthTokenTTL, p.AuthTokenTTL())

	tok, err := p.AuthToken("user-1")
	require.NoError(t, err)
	claims, err := p.DecodeAuthToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserUID)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestDecodeAuthToken_Failures(t *testing.T) {
	p := NewTokenProvider("secret", "test", time.Minute, nil, nil)

	p.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := p.AuthToken("user-1")
	require.NoError(t, err)
	p.now = time.Now
	_, err = p.DecodeAuthToken(expired)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenExpired))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	foreign, err := NewTokenProvider("other", "test", 0, nil, nil).AuthToken("user-1")
	require.NoError(t, err)
	_, err = p.DecodeAuthToken(foreign)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserUID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.DecodeAuthToken(unsigned)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	_, err = p.DecodeAuthToken("garbage")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))
}

func TestDecodeSocialTokens(t *testing.T) {
	google := social.VerifierFunc(func(_ context.Context, token string) (*social.Identity, error) {
		if token == "ok" {
			return &social.Identity{ID: "g1", Email: "g@x.com", EmailVerified: true}, nil
		}
		return nil, social.ErrVerification
	})
	p := NewTokenProvider("secret", "test", 0, google, nil)

	id, err := p.DecodeGoogleToken(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "g1", id.ID)

	_, err = p.DecodeGoogleToken(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeExternalVerify))
	assert.True(t, errors.Is(err, social.ErrVerification))

	_, err = p.DecodeFacebookToken(context.Background(), "ok")
	assert.True(t, apperr.HasCode(err, apperr.CodeExternalVerify))
}
