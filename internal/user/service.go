package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-identity/internal/user/repo"
)

// UserService exposes account lookups used by authentication.
type UserService struct {
	db     *sqlx.DB
	repo   *userrepo.UserRepo
	logger *zap.SugaredLogger
}

func NewUserService(db *sqlx.DB, r *userrepo.UserRepo, logger *zap.SugaredLogger) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo()
	}
	return &UserService{db: db, repo: r, logger: logger}
}

// FindUser returns the live user with that username or nil.
func (s *UserService) FindUser(ctx context.Context, username string) (*entity.User, error) {
	return noRowsAsNil(s.repo.GetByUsername(ctx, s.db, username))
}

// FindByGoogleID returns the user linked to the Google subject or nil.
func (s *UserService) FindByGoogleID(ctx context.Context, googleID string) (*entity.User, error) {
	return noRowsAsNil(s.repo.GetByGoogleID(ctx, s.db, googleID))
}

// FindByFacebookID returns the user linked to the Facebook id or nil.
func (s *UserService) FindByFacebookID(ctx context.Context, facebookID string) (*entity.User, error) {
	return noRowsAsNil(s.repo.GetByFacebookID(ctx, s.db, facebookID))
}

// Get returns the live user visible to the scope or nil.
func (s *UserService) Get(ctx context.Context, uid string, scope acs.Scope) (*entity.User, error) {
	return noRowsAsNil(s.repo.GetByUID(ctx, s.db, uid, scope))
}

// UpdateUserLastLogin stamps last_login_at. Failures are logged only.
func (s *UserService) UpdateUserLastLogin(ctx context.Context, uid string) {
	s.logger.Debugw("user.last-login.start", "uid", uid)
	if err := s.repo.UpdateLastLogin(ctx, s.db, uid); err != nil {
		s.logger.Warnw("user.last-login.failed", "uid", uid, "err", err)
		return
	}
	s.logger.Debugw("user.last-login.done", "uid", uid)
}

// UpdateUserLastLoginAsync runs UpdateUserLastLogin detached from the request.
// The returned channel is closed when the update finishes.
func (s *UserService) UpdateUserLastLoginAsync(uid string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.UpdateUserLastLogin(ctx, uid)
	}()
	return done
}

// Ban marks a user as banned; banned users cannot log in.
func (s *UserService) Ban(ctx context.Context, username string) error {
	n, err := s.repo.Ban(ctx, s.db, username)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	s.logger.Infow("user.banned", "username", username)
	return nil
}

func noRowsAsNil(u *entity.User, err error) (*entity.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}
