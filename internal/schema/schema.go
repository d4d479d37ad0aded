// Package schema creates the tables of the service.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	authrepo "github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	imagerepo "github.com/ovaphlow/pitchfork/service-identity/internal/image/repo"
	personrepo "github.com/ovaphlow/pitchfork/service-identity/internal/person/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-identity/internal/user/repo"
)

type tableEnsurer interface {
	EnsureTable(ctx context.Context, db *sqlx.DB) error
}

// Migrate creates every table in dependency order. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		t    tableEnsurer
	}{
		{"person", personrepo.NewPersonRepo()},
		{"users", userrepo.NewUserRepo()},
		{"user_details", userrepo.NewDetailsRepo()},
		{"auth_data", authrepo.NewSessionRepo(authrepo.DefaultMaxSessions)},
		{"image", imagerepo.NewImageRepo()},
	}
	for _, s := range steps {
		if err := s.t.EnsureTable(ctx, db); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
