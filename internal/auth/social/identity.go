// Package social verifies identity tokens issued by third-party providers.
package social

import (
	"context"
	"errors"
)

// ErrVerification is returned when a provider rejects a token.
var ErrVerification = errors.New("third-party token verification failed")

// Identity is the normalized payload of a verified third-party token.
type Identity struct {
	ID            string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Picture       string
}

// Verifier checks a provider token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (*Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}
