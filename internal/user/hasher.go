package user

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password is empty")

// PasswordHasher defines the credential hashing contract.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// NewHasher returns the hasher for the environment: bcrypt in production,
// a readable tagged form everywhere else.
func NewHasher(production bool, bcryptCost int) PasswordHasher {
	if production {
		return BcryptHasher{Cost: bcryptCost}
	}
	return PlainHasher{}
}

const plainPrefix = "TEXT:"

// PlainHasher stores "TEXT:<password>" so fixtures stay readable in development.
type PlainHasher struct{}

func (PlainHasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	return plainPrefix + pw, nil
}

func (PlainHasher) Verify(hash, pw string) bool {
	if pw == "" || !strings.HasPrefix(hash, plainPrefix) {
		return false
	}
	return ConstantTimeCompare(hash, plainPrefix+pw)
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	if hash == "" || pw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ConstantTimeCompare compares two secrets without leaking their common prefix length.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
