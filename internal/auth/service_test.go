package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/social"
	"github.com/ovaphlow/pitchfork/service-identity/internal/notify"
	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile"
	profileentity "github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-identity/internal/user/repo"
)

var (
	desktop = entity.HeaderInfo{IP: "10.0.0.1", UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"}
	phone   = entity.HeaderInfo{IP: "10.0.0.2", UserAgent: "Mobile Safari"}
)

type fixture struct {
	db       *sqlx.DB
	svc      *auth.Service
	sessions *repo.SessionRepo
	social   map[string]*social.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{db: db, sessions: repo.NewSessionRepo(repo.DefaultMaxSessions), social: map[string]*social.Identity{}}
	verifier := social.VerifierFunc(func(_ context.Context, token string) (*social.Identity, error) {
		id, ok := f.social[token]
		if !ok {
			return nil, social.ErrVerification
		}
		return id, nil
	})
	profiles := profile.NewService(db, f.sessions, user.PlainHasher{}, notify.Discard{}, profile.ResetPolicy{}, testutil.Logger())
	tokens := auth.NewTokenProvider("test-secret", "identity-test", time.Minute, verifier, verifier)
	f.svc = auth.NewService(db, tokens, f.sessions, profiles, user.PlainHasher{}, auth.DefaultRefreshTokenMaxAgeDays, testutil.Logger())
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) register(t *testing.T, email, password string) *profileentity.Profile {
	t.Helper()
	p, err := f.svc.Register(context.Background(), profileentity.NewProfile{
		Email:    email,
		Password: password,
		Person:   personentity.Person{FirstName: "Ann", LastName: "Lee"},
	}, userentity.LanguageEN)
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, username string) int {
	t.Helper()
	n, err := f.sessions.Count(context.Background(), f.db, username)
	require.NoError(t, err)
	return n
}

func (f *fixture) session(t *testing.T, token string) *entity.AuthData {
	t.Helper()
	d, err := f.sessions.Get(context.Background(), f.db, token)
	require.NoError(t, err)
	return d
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "a@x.com", "pw")
	assert.Equal(t, userentity.RolePrivate, p.Role)
	assert.Equal(t, userentity.LanguageEN, p.Details.Language)

	_, err := f.svc.Register(context.Background(), profileentity.NewProfile{Email: "a@x.com", Password: "pw2"}, userentity.LanguageUA)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeExist))

	_, err = f.svc.Register(context.Background(), profileentity.NewProfile{Email: "b@x.com", Password: "pw", Role: userentity.RoleAdministrator}, userentity.LanguageUA)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLogin_IssuesVerifiableSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.register(t, "a@x.com", "pw")

	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AuthToken)
	assert.False(t, tokens.IsNew)

	d := f.session(t, tokens.RefreshToken.Token)
	require.NotNil(t, d)
	assert.Equal(t, "a@x.com", d.Username)
	assert.Equal(t, d.RefreshTokenHash, f.svc.Tokens().RefreshTokenHash(tokens.RefreshToken.Token, desktop))
	assert.Equal(t, desktop, d.HeaderInfo)

	u, err := f.svc.ValidateAccessToken(ctx, tokens.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, p.UID, u.UID)

	f.svc.Wait()
	got, err := userrepo.NewUserRepo().GetByUsername(ctx, f.db, "a@x.com")
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")

	_, err := f.svc.Login(ctx, "a@x.com", "wrong", desktop, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, e.Kind)
	assert.Equal(t, apperr.CodeDontMatch, e.Code)
	assert.Equal(t, "login", e.Source)

	_, err = f.svc.Login(ctx, "nobody@x.com", "pw", desktop, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeDontMatch))

	_, err = userrepo.NewUserRepo().Ban(ctx, f.db, "a@x.com")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeUserBanned))

	assert.Zero(t, f.count(t, "a@x.com"))
}

func TestRefresh_RotatesAndConsumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	first, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "dev-1")
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken.Token, desktop)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken.Token, second.RefreshToken.Token)
	assert.Nil(t, f.session(t, first.RefreshToken.Token))

	d := f.session(t, second.RefreshToken.Token)
	require.NotNil(t, d)
	require.NotNil(t, d.DeviceToken)
	assert.Equal(t, "dev-1", *d.DeviceToken)
	assert.Equal(t, 1, f.count(t, "a@x.com"))

	_, err = f.svc.Refresh(ctx, first.RefreshToken.Token, desktop)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, e.Kind)
	assert.Equal(t, apperr.CodeRefreshToken, e.Code)
	assert.Equal(t, "token", e.Source)
}

func TestRefresh_FingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken.Token, phone)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	assert.NotNil(t, f.session(t, tokens.RefreshToken.Token))
	assert.Equal(t, 1, f.count(t, "a@x.com"))
}

func TestRefresh_ExpiredSessionIsConsumed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE auth_data SET created_at = ? WHERE uid = ?`,
		time.Now().UTC().AddDate(0, 0, -61), tokens.RefreshToken.Token)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken.Token, desktop)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenExpired))

	assert.Nil(t, f.session(t, tokens.RefreshToken.Token))
	assert.Zero(t, f.count(t, "a@x.com"))
}

func TestRefresh_SingleUseUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(ctx, tokens.RefreshToken.Token, desktop)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	for _, err := range errs {
		assert.True(t, apperr.HasCode(err, apperr.CodeRefreshToken), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, f.count(t, "a@x.com"))
}

func TestRefresh_MissingOwnerStillConsumesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE auth_data SET username = ? WHERE uid = ?`, "ghost@x.com", tokens.RefreshToken.Token)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken.Token, desktop)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeRefreshToken))
	assert.Nil(t, f.session(t, tokens.RefreshToken.Token))
}

func TestLogin_SessionCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")

	for i := 1; i <= repo.DefaultMaxSessions; i++ {
		_, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
		require.NoError(t, err)
		assert.Equal(t, i, f.count(t, "a@x.com"))
	}
	sixth, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, f.count(t, "a@x.com"), repo.DefaultMaxSessions)
	assert.NotNil(t, f.session(t, sixth.RefreshToken.Token))
}

func TestLogin_DeviceTokenMovesToNewSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	f.register(t, "b@x.com", "pw")

	a, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "device-1")
	require.NoError(t, err)
	b, err := f.svc.Login(ctx, "b@x.com", "pw", phone, "device-1")
	require.NoError(t, err)

	sa := f.session(t, a.RefreshToken.Token)
	require.NotNil(t, sa)
	assert.Nil(t, sa.DeviceToken)

	sb := f.session(t, b.RefreshToken.Token)
	require.NotNil(t, sb)
	require.NotNil(t, sb.DeviceToken)
	assert.Equal(t, "device-1", *sb.DeviceToken)
}

func TestLoginGoogle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.social["good"] = &social.Identity{ID: "g-1", Email: "g@x.com", EmailVerified: true, FirstName: "Gail", LastName: "G"}
	f.social["unverified"] = &social.Identity{ID: "g-2", Email: "u@x.com"}

	first, err := f.svc.LoginGoogle(ctx, "good", desktop, userentity.LanguageEN, "")
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	u, err := f.svc.ValidateAccessToken(ctx, first.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, "g-1@google", u.Username)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "g-1", *u.GoogleID)

	second, err := f.svc.LoginGoogle(ctx, "good", desktop, userentity.LanguageEN, "")
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, 2, f.count(t, "g-1@google"))

	_, err = f.svc.LoginGoogle(ctx, "unverified", desktop, userentity.LanguageEN, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeEmailNotConfirmed))

	_, err = f.svc.LoginGoogle(ctx, "forged", desktop, userentity.LanguageEN, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeExternalVerify))
}

func TestLoginGoogle_EmailTakenByPasswordAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	f.social["good"] = &social.Identity{ID: "g-1", Email: "a@x.com", EmailVerified: true}

	_, err := f.svc.LoginGoogle(context.Background(), "good", desktop, userentity.LanguageUA, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.Equal(t, "google", e.Source)
}

func TestLoginFacebook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.social["fb"] = &social.Identity{ID: "f-1", Email: "f@x.com"}
	f.social["no-email"] = &social.Identity{ID: "f-2"}

	tokens, err := f.svc.LoginFacebook(ctx, "fb", desktop, userentity.LanguageUA, "dev")
	require.NoError(t, err)
	assert.True(t, tokens.IsNew)
	assert.Equal(t, 1, f.count(t, "f-1@facebook"))

	_, err = f.svc.LoginFacebook(ctx, "no-email", desktop, userentity.LanguageUA, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeNoEmailOnFacebook))
}

func TestValidateAccessToken_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ValidateAccessToken(ctx, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeNoAccessToken))

	_, err = f.svc.ValidateAccessToken(ctx, "not-a-jwt")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	orphan, err := f.svc.Tokens().AuthToken("no-such-user")
	require.NoError(t, err)
	_, err = f.svc.ValidateAccessToken(ctx, orphan)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	tokens, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, tokens.RefreshToken.Token, phone))
	assert.NotNil(t, f.session(t, tokens.RefreshToken.Token))

	require.NoError(t, f.svc.Logout(ctx, tokens.RefreshToken.Token, desktop))
	assert.Nil(t, f.session(t, tokens.RefreshToken.Token))

	require.NoError(t, f.svc.Logout(ctx, "", desktop))
	require.NoError(t, f.svc.Logout(ctx, "unknown", desktop))
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.com", "pw")
	old, err := f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "pw", desktop, "")
	require.NoError(t, err)
	_, err = f.db.Exec(`UPDATE auth_data SET created_at = ? WHERE uid = ?`, time.Now().UTC().AddDate(0, 0, -70), old.RefreshToken.Token)
	require.NoError(t, err)

	sw := auth.NewSweeper(f.db, f.sessions, auth.DefaultRefreshTokenMaxAgeDays, testutil.Logger())
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, f.count(t, "a@x.com"))

	require.NoError(t, sw.Start(""))
	require.NoError(t, sw.Start("@every 1m"))
	sw.Stop()
	assert.Error(t, auth.NewSweeper(f.db, f.sessions, 0, testutil.Logger()).Start("not a schedule"))
}
