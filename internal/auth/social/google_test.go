package social

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGoogleIssuer   = "https://accounts.google.example"
	testGoogleClientID = "client-1.apps.example"
	testKeyID          = "k1"
)

func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	b64 := base64.RawURLEncoding
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   b64.EncodeToString(key.N.Bytes()),
			"e":   b64.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func googleClaims(aud string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            testGoogleIssuer,
		"sub":            "g-42",
		"aud":            aud,
		"iat":            now.Add(-10 * time.Second).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "g@example.com",
		"email_verified": true,
		"given_name":     "Gail",
		"family_name":    "Green",
		"picture":        "https://cdn.example.com/g.png",
	}
}

func TestGoogleVerifier_Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key)
	v := NewGoogleVerifier(testGoogleIssuer, testGoogleClientID, srv.URL, srv.Client())

	id, err := v.Verify(context.Background(), signIDToken(t, key, googleClaims(testGoogleClientID)))
	require.NoError(t, err)
	assert.Equal(t, "g-42", id.ID)
	assert.Equal(t, "g@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Gail", id.FirstName)
	assert.Equal(t, "Green", id.LastName)
	assert.Equal(t, "https://cdn.example.com/g.png", id.Picture)
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	stranger, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key)
	v := NewGoogleVerifier(testGoogleIssuer, testGoogleClientID, srv.URL, srv.Client())

	expired := googleClaims(testGoogleClientID)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongIssuer := googleClaims(testGoogleClientID)
	wrongIssuer["iss"] = "https://evil.example"

	for name, token := range map[string]string{
		"wrong audience": signIDToken(t, key, googleClaims("someone-else.apps.example")),
		"wrong issuer":   signIDToken(t, key, wrongIssuer),
		"expired":        signIDToken(t, key, expired),
		"unknown key":    signIDToken(t, stranger, googleClaims(testGoogleClientID)),
		"garbage":        "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrVerification)
		})
	}
}
