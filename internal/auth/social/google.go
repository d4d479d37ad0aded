package social

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// GoogleVerifier validates Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	verifier *rp.IDTokenVerifier
}

func NewGoogleVerifier(issuer, clientID, jwksURL string, client *http.Client) *GoogleVerifier {
	if issuer == "" {
		issuer = GoogleIssuer
	}
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	keys := rp.NewRemoteKeySet(client, jwksURL)
	return &GoogleVerifier{verifier: rp.NewIDTokenVerifier(issuer, clientID, keys)}
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token, g.verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", ErrVerification, err)
	}
	return &Identity{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		Picture:       claims.Picture,
	}, nil
}
