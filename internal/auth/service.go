// Package auth issues and rotates session tokens.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/social"
	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	profileentity "github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-identity/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// DefaultRefreshTokenMaxAgeDays is how long a session may be refreshed.
const DefaultRefreshTokenMaxAgeDays = 60

// ProfileCreator provisions accounts during registration and social login.
type ProfileCreator interface {
	Create(ctx context.Context, in profileentity.NewProfile, scope acs.Scope, sendEmail bool) (*profileentity.Profile, error)
}

// Service orchestrates login, registration and token rotation.
type Service struct {
	db         *sqlx.DB
	tokens     *TokenProvider
	sessions   *repo.SessionRepo
	users      *user.UserService
	userRepo   *userrepo.UserRepo
	profiles   ProfileCreator
	hasher     user.PasswordHasher
	maxAgeDays int
	logger     *zap.SugaredLogger
	now        func() time.Time
	background sync.WaitGroup
}

func NewService(db *sqlx.DB, tokens *TokenProvider, sessions *repo.SessionRepo, profiles ProfileCreator, hasher user.PasswordHasher, maxAgeDays int, logger *zap.SugaredLogger) *Service {
	if sessions == nil {
		sessions = repo.NewSessionRepo(repo.DefaultMaxSessions)
	}
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultRefreshTokenMaxAgeDays
	}
	users := userrepo.NewUserRepo()
	return &Service{
		db:         db,
		tokens:     tokens,
		sessions:   sessions,
		users:      user.NewUserService(db, users, logger),
		userRepo:   users,
		profiles:   profiles,
		hasher:     hasher,
		maxAgeDays: maxAgeDays,
		logger:     logger,
		now:        time.Now,
	}
}

// Tokens exposes the provider, e.g. for cookie lifetimes.
func (s *Service) Tokens() *TokenProvider { return s.tokens }

// Wait blocks until background work started by logins has finished.
func (s *Service) Wait() { s.background.Wait() }

// Register creates a self-service account. Only private and legal persons
// may sign up on their own.
func (s *Service) Register(ctx context.Context, in profileentity.NewProfile, language userentity.Language) (*profileentity.Profile, error) {
	if in.Role == "" {
		in.Role = userentity.RolePrivate
	}
	if in.Role != userentity.RolePrivate && in.Role != userentity.RoleLegal {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "role", "role is not allowed for registration")
	}
	in.Language = language
	in.Username, in.GoogleID, in.FacebookID, in.EmailConfirmed = "", nil, nil, false
	p, err := s.profiles.Create(ctx, in, acs.GrandAccess(), true)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("auth.register.done", "uid", p.UID, "role", p.Role)
	return p, nil
}

// Login checks a password and opens a session.
func (s *Service) Login(ctx context.Context, username, password string, h entity.HeaderInfo, deviceToken string) (*entity.Tokens, error) {
	s.logger.Debugw("auth.login.start", "username", username, "ip", h.IP)
	u, err := s.users.FindUser(ctx, username)
	if err != nil {
		return nil, apperr.Internal(err, "find user")
	}
	if u == nil {
		return nil, apperr.Unauthorized(apperr.CodeDontMatch, "login", "username or password does not match")
	}
	if err := s.VerifyUserSystemStatus(u); err != nil {
		return nil, err
	}
	if err := s.VerifyUsernamePassword(username, password, u, "login"); err != nil {
		return nil, err
	}
	tokens, err := s.open(ctx, u, h, deviceToken)
	if err != nil {
		return nil, err
	}
	s.bumpLastLogin(u.UID)
	s.logger.Infow("auth.login.done", "uid", u.UID)
	return tokens, nil
}

// LoginGoogle opens a session for a verified Google identity, creating the
// account on first use.
func (s *Service) LoginGoogle(ctx context.Context, token string, h entity.HeaderInfo, language userentity.Language, deviceToken string) (*entity.Tokens, error) {
	id, err := s.tokens.DecodeGoogleToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if id.Email == "" || !id.EmailVerified {
		return nil, apperr.Forbidden(apperr.CodeEmailNotConfirmed, "google", "google email is not confirmed")
	}
	return s.socialLogin(ctx, userentity.ProviderGoogle, id, h, language, deviceToken)
}

// LoginFacebook opens a session for a Facebook identity that exposes an email.
func (s *Service) LoginFacebook(ctx context.Context, token string, h entity.HeaderInfo, language userentity.Language, deviceToken string) (*entity.Tokens, error) {
	id, err := s.tokens.DecodeFacebookToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if id.Email == "" {
		return nil, apperr.Forbidden(apperr.CodeNoEmailOnFacebook, "facebook", "facebook account has no email")
	}
	return s.socialLogin(ctx, userentity.ProviderFacebook, id, h, language, deviceToken)
}

func (s *Service) socialLogin(ctx context.Context, provider userentity.SocialProvider, id *social.Identity, h entity.HeaderInfo, language userentity.Language, deviceToken string) (*entity.Tokens, error) {
	source := string(provider)
	var (
		u   *userentity.User
		err error
	)
	if provider == userentity.ProviderGoogle {
		u, err = s.users.FindByGoogleID(ctx, id.ID)
	} else {
		u, err = s.users.FindByFacebookID(ctx, id.ID)
	}
	if err != nil {
		return nil, apperr.Internal(err, "find social user")
	}
	isNew := u == nil
	if isNew {
		in := profileentity.NewProfile{
			Email: id.Email,
			Role:  userentity.RolePrivate,
			Person: personentity.Person{
				FirstName: id.FirstName,
				LastName:  id.LastName,
				Avatar:    id.Picture,
			},
			Username:       userentity.SocialUsername(provider, id.ID),
			EmailConfirmed: true,
			Language:       language,
		}
		providerID := id.ID
		if provider == userentity.ProviderGoogle {
			in.GoogleID = &providerID
		} else {
			in.FacebookID = &providerID
		}
		p, err := s.profiles.Create(ctx, in, acs.GrandAccess(), false)
		if err != nil {
			if e, ok := apperr.As(err); ok && e.Kind == apperr.KindConflict {
				return nil, e.WithSource(source)
			}
			return nil, err
		}
		u = &p.User
		s.logger.Infow("auth.social.provisioned", "provider", provider, "uid", u.UID)
	}
	if err := s.VerifyUserSystemStatus(u); err != nil {
		return nil, err
	}
	tokens, err := s.open(ctx, u, h, deviceToken)
	if err != nil {
		return nil, err
	}
	tokens.IsNew = isNew
	s.bumpLastLogin(u.UID)
	return tokens, nil
}

// open issues a token pair and persists its session. Excess sessions and
// sessions holding the same device token are dropped first.
func (s *Service) open(ctx context.Context, u *userentity.User, h entity.HeaderInfo, deviceToken string) (*entity.Tokens, error) {
	authToken, err := s.tokens.AuthToken(u.UID)
	if err != nil {
		return nil, apperr.Internal(err, "sign auth token")
	}
	rt := s.tokens.RefreshToken(h)
	data := &entity.AuthData{UID: rt.Token, Username: u.Username, RefreshTokenHash: rt.Hash, HeaderInfo: h}
	if deviceToken != "" {
		data.DeviceToken = &deviceToken
	}
	err = database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.sessions.DropExceedingSessionsIfAny(ctx, tx, u.Username)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Infow("auth.sessions.evicted", "username", u.Username, "count", n)
		}
		if deviceToken != "" {
			if err := s.sessions.DropDeviceTokenIfAny(ctx, tx, deviceToken); err != nil {
				return err
			}
		}
		return s.sessions.SaveRefreshToken(ctx, tx, data)
	})
	if err != nil {
		return nil, apperr.Internal(err, "save session")
	}
	return &entity.Tokens{AuthToken: authToken, RefreshToken: rt}, nil
}

// Refresh rotates a refresh token. The presented token is consumed even when
// the session turns out to be expired or its owner is gone. Each token is
// exchanged at most once: a concurrent refresh that loses the delete fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string, h entity.HeaderInfo) (*entity.Tokens, error) {
	var (
		expired  bool
		orphaned bool
		tokens   *entity.Tokens
	)
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		d, err := s.sessions.Get(ctx, tx, refreshToken)
		if err != nil {
			return err
		}
		if d == nil || !user.ConstantTimeCompare(d.RefreshTokenHash, s.tokens.RefreshTokenHash(refreshToken, h)) {
			return apperr.Unauthorized(apperr.CodeRefreshToken, "token", "refresh token is invalid")
		}
		n, err := s.sessions.Delete(ctx, tx, d.UID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Unauthorized(apperr.CodeRefreshToken, "token", "refresh token was already used")
		}
		if s.ageDays(d.CreatedAt) > s.maxAgeDays {
			expired = true
			return nil
		}
		u, err := s.userRepo.GetByUsername(ctx, tx, d.Username)
		if errors.Is(err, sql.ErrNoRows) {
			orphaned = true
			return nil
		}
		if err != nil {
			return err
		}
		authToken, err := s.tokens.AuthToken(u.UID)
		if err != nil {
			return err
		}
		rt := s.tokens.RefreshToken(h)
		next := &entity.AuthData{
			UID:              rt.Token,
			Username:         d.Username,
			RefreshTokenHash: rt.Hash,
			HeaderInfo:       h,
			DeviceToken:      d.DeviceToken,
		}
		if err := s.sessions.SaveRefreshToken(ctx, tx, next); err != nil {
			return err
		}
		tokens = &entity.Tokens{AuthToken: authToken, RefreshToken: rt}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Internal(err, "refresh session")
	}
	if expired {
		return nil, apperr.Unauthorized(apperr.CodeTokenExpired, "token", "refresh token has expired")
	}
	if orphaned {
		return nil, apperr.Unauthorized(apperr.CodeRefreshToken, "token", "session owner no longer exists")
	}
	return tokens, nil
}

func (s *Service) ageDays(createdAt time.Time) int {
	return int(s.now().Sub(createdAt).Hours() / 24)
}

// ValidateAccessToken resolves the user behind an auth token.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*userentity.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized(apperr.CodeNoAccessToken, "token", "no access token")
	}
	claims, err := s.tokens.DecodeAuthToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, claims.UserUID, acs.GrandAccess())
	if err != nil {
		return nil, apperr.Internal(err, "load token user")
	}
	if u == nil {
		return nil, apperr.Unauthorized(apperr.CodeInvalidToken, "token", "token user no longer exists")
	}
	return u, nil
}

// VerifyUsernamePassword checks password against the stored hash of u.
func (s *Service) VerifyUsernamePassword(username, password string, u *userentity.User, source string) error {
	if u == nil || u.Username != username || !s.hasher.Verify(u.Password, password) {
		return apperr.Unauthorized(apperr.CodeDontMatch, source, "username or password does not match")
	}
	return nil
}

// VerifyUserSystemStatus rejects banned accounts.
func (s *Service) VerifyUserSystemStatus(u *userentity.User) error {
	if u.Banned() {
		return apperr.Forbidden(apperr.CodeUserBanned, "system-status", "user is banned")
	}
	return nil
}

// Logout revokes the session of a presented refresh token when its
// fingerprint matches. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string, h entity.HeaderInfo) error {
	if refreshToken == "" {
		return nil
	}
	d, err := s.sessions.Get(ctx, s.db, refreshToken)
	if err != nil {
		return apperr.Internal(err, "load session")
	}
	if d == nil || !user.ConstantTimeCompare(d.RefreshTokenHash, s.tokens.RefreshTokenHash(refreshToken, h)) {
		return nil
	}
	if _, err := s.sessions.Delete(ctx, s.db, d.UID); err != nil {
		return apperr.Internal(err, "delete session")
	}
	s.logger.Infow("auth.logout.done", "username", d.Username)
	return nil
}

func (s *Service) bumpLastLogin(uid string) {
	done := s.users.UpdateUserLastLoginAsync(uid)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		<-done
	}()
}
