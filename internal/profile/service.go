// Package profile manages the identity aggregate: account, person and details.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	authrepo "github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/notify"
	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	personrepo "github.com/ovaphlow/pitchfork/service-identity/internal/person/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-identity/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/utilities"
)

const (
	// DefaultResetCooldown is the minimum gap between two password reset codes.
	DefaultResetCooldown = time.Minute
	// DefaultResetCodeTTL is how long a password reset code stays usable.
	DefaultResetCodeTTL = time.Hour
)

// ResetPolicy bounds password restoration codes. Zero fields take defaults.
type ResetPolicy struct {
	Cooldown time.Duration
	CodeTTL  time.Duration
}

const phoneCodeLength = 6

// Service implements profile use cases. Every mutation runs in one transaction.
type Service struct {
	db            *sqlx.DB
	users         *userrepo.UserRepo
	details       *userrepo.DetailsRepo
	persons       *personrepo.PersonRepo
	profiles      *repo.ProfileRepo
	sessions      *authrepo.SessionRepo
	hasher        user.PasswordHasher
	notifier      notify.Notifier
	reset         ResetPolicy
	logger        *zap.SugaredLogger
	now           func() time.Time
}

func NewService(db *sqlx.DB, sessions *authrepo.SessionRepo, hasher user.PasswordHasher, notifier notify.Notifier, reset ResetPolicy, logger *zap.SugaredLogger) *Service {
	if sessions == nil {
		sessions = authrepo.NewSessionRepo(authrepo.DefaultMaxSessions)
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if reset.Cooldown <= 0 {
		reset.Cooldown = DefaultResetCooldown
	}
	if reset.CodeTTL <= 0 {
		reset.CodeTTL = DefaultResetCodeTTL
	}
	return &Service{
		db:            db,
		users:         userrepo.NewUserRepo(),
		details:       userrepo.NewDetailsRepo(),
		persons:       personrepo.NewPersonRepo(),
		profiles:      repo.NewProfileRepo(),
		sessions:      sessions,
		hasher:        hasher,
		notifier:      notifier,
		reset:         reset,
		logger:        logger,
		now:           time.Now,
	}
}

func notFound(source string) *apperr.Error {
	return apperr.NotFound(apperr.CodeEntityNotFound, source, "profile not found")
}

func exists(source string) *apperr.Error {
	return apperr.Conflict(apperr.CodeExist, source, "email already exists")
}

// Create registers a person, its account and details. Only a full access
// scope may create accounts.
func (s *Service) Create(ctx context.Context, in entity.NewProfile, scope acs.Scope, sendEmail bool) (*entity.Profile, error) {
	if !scope.FullAccess() {
		return nil, apperr.Forbidden(apperr.CodeAccessDenied, "profile", "not allowed to create profiles")
	}
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "email", "email is required")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "role", "unknown role")
	}
	if in.Password == "" && !in.Social() {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "password", "password is required")
	}
	if !in.Language.Valid() {
		in.Language = userentity.LanguageUA
	}
	hash := ""
	if in.Password != "" {
		h, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, apperr.Internal(err, "hash password")
		}
		hash = h
	}
	username := in.Username
	if username == "" {
		username = in.Email
	}

	now := s.now().UTC()
	person := in.Person
	person.UID = utilities.NewUID()
	person.Email = in.Email
	person.CreatedAt = now
	if person.Gender == "" {
		person.Gender = personentity.GenderUnset
	}
	u := userentity.User{
		UID:        utilities.NewUID(),
		Username:   username,
		Password:   hash,
		Role:       in.Role,
		PersonUID:  person.UID,
		GoogleID:   in.GoogleID,
		FacebookID: in.FacebookID,
		CreatedAt:  now,
	}
	details := userentity.Details{
		UID:                u.UID,
		EmailConfirmed:     in.EmailConfirmed,
		Language:           in.Language,
		NotifyAboutNewPoll: in.NotifyAboutNewPoll,
		NotifyEmail:        in.NotifyEmail,
		CreatedAt:          now,
	}
	if !in.EmailConfirmed {
		code := utilities.NewSecretCode()
		details.EmailConfirmationCode = &code
	}
	u.SystemStatus = SystemStatus(userentity.StatusSuspended, u.Role, &person, &details, now)

	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.persons.GetByEmail(ctx, tx, in.Email); err == nil {
			return exists("email")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.persons.Create(ctx, tx, &person); err != nil {
			return err
		}
		if err := s.users.Create(ctx, tx, &u); err != nil {
			return err
		}
		return s.details.Create(ctx, tx, &details)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, exists("email")
		}
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Internal(err, "create profile")
	}
	s.logger.Infow("profile.created", "uid", u.UID, "role", u.Role, "status", u.SystemStatus)

	if sendEmail && details.EmailConfirmationCode != nil {
		if err := s.notifier.SendEmailConfirmation(ctx, person.Email, details.Language, *details.EmailConfirmationCode); err != nil {
			s.logger.Warnw("profile.created.notify-failed", "uid", u.UID, "err", err)
		}
	}
	return &entity.Profile{User: u, Person: person, Details: details}, nil
}

// Get returns the profile whose person has the email.
func (s *Service) Get(ctx context.Context, email string, scope acs.Scope) (*entity.Profile, error) {
	uid, err := s.profiles.UserUIDByEmail(ctx, s.db, strings.ToLower(email), scope)
	if err != nil {
		return nil, s.lookupErr(err, "profile")
	}
	return s.load(ctx, s.db, uid)
}

// GetMyProfile returns the profile of the authenticated user.
func (s *Service) GetMyProfile(ctx context.Context, uid string) (*entity.Profile, error) {
	return s.load(ctx, s.db, uid)
}

// GetByUsername returns the profile of the account with the username.
func (s *Service) GetByUsername(ctx context.Context, username string, scope acs.Scope) (*entity.Profile, error) {
	uid, err := s.profiles.UserUIDByUsername(ctx, s.db, username, scope)
	if err != nil {
		return nil, s.lookupErr(err, "profile")
	}
	return s.load(ctx, s.db, uid)
}

// List returns one page of profiles.
func (s *Service) List(ctx context.Context, f entity.Filter, scope acs.Scope) (*entity.PagedList, error) {
	f.Normalize()
	items, total, err := s.profiles.List(ctx, s.db, f, scope)
	if err != nil {
		return nil, apperr.Internal(err, "list profiles")
	}
	return &entity.PagedList{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// DeleteProfile soft-deletes the account, clears personal data and drops
// every session. Only the owner or a full access scope may delete.
func (s *Service) DeleteProfile(ctx context.Context, username string, scope acs.Scope) error {
	const source = "delete-profile"
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		u, err := s.users.GetByUsername(ctx, tx, username)
		if err != nil {
			return s.lookupErr(err, source)
		}
		if owner, ok := scope.OwnerUID(); !scope.FullAccess() && (!ok || owner != u.UID) {
			return notFound(source)
		}
		if err := s.sessions.DeleteByUsername(ctx, tx, u.Username); err != nil {
			return err
		}
		if err := s.details.Delete(ctx, tx, u.UID); err != nil {
			return err
		}
		if err := s.persons.SoftDelete(ctx, tx, u.PersonUID); err != nil {
			return err
		}
		n, err := s.users.SoftDelete(ctx, tx, u.UID, scope)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(source)
		}
		return nil
	})
	if err != nil {
		return s.wrap(err, "delete profile")
	}
	s.logger.Infow("profile.deleted", "username", username)
	return nil
}

// UpdatePersonByUsername replaces the person attributes of the account.
// Without full access the acting user must be known.
func (s *Service) UpdatePersonByUsername(ctx context.Context, username string, p personentity.Person, scope acs.Scope, actorUID string) (*entity.Profile, error) {
	if !scope.FullAccess() && actorUID == "" {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "profile", "acting user is required")
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "gender", "unknown gender")
	}
	var uid string
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.persons.UpdateByUsername(ctx, tx, username, &p, scope)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("profile")
		}
		u, err := s.users.GetByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		uid = u.UID
		return s.refreshStatus(ctx, tx, u)
	})
	if err != nil {
		return nil, s.wrap(err, "update person")
	}
	return s.load(ctx, s.db, uid)
}

// UpdateEmail moves the account to a new email: sessions are dropped, the
// username follows the email unless the account is provider-linked, and the
// new address must be confirmed again.
func (s *Service) UpdateEmail(ctx context.Context, username, newEmail string, scope acs.Scope) (*entity.Profile, error) {
	const source = "profile"
	newEmail = strings.TrimSpace(strings.ToLower(newEmail))
	if newEmail == "" {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "email", "email is required")
	}
	code := utilities.NewSecretCode()
	var u *userentity.User
	var details *userentity.Details
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		u, err = s.users.GetByUsername(ctx, tx, username)
		if err != nil {
			return s.lookupErr(err, source)
		}
		if other, err := s.persons.GetByEmail(ctx, tx, newEmail); err == nil && other.UID != u.PersonUID {
			return exists(source)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.sessions.DeleteByUsername(ctx, tx, username); err != nil {
			return err
		}
		current := username
		if !userentity.IsSocialUsername(username) {
			n, err := s.users.UpdateUsername(ctx, tx, username, newEmail, scope)
			if err != nil {
				return err
			}
			if n == 0 {
				return notFound(source)
			}
			current = newEmail
		}
		n, err := s.persons.UpdateEmailByUsername(ctx, tx, current, newEmail, scope)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(source)
		}
		if err := s.details.UnconfirmEmail(ctx, tx, u.UID, code); err != nil {
			return err
		}
		u.Username = current
		if details, err = s.details.GetByUID(ctx, tx, u.UID); err != nil {
			return err
		}
		return s.refreshStatus(ctx, tx, u)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, exists(source)
		}
		return nil, s.wrap(err, "update email")
	}
	if err := s.notifier.SendEmailConfirmation(ctx, newEmail, details.Language, code); err != nil {
		s.logger.Warnw("profile.email.notify-failed", "uid", u.UID, "err", err)
	}
	return s.load(ctx, s.db, u.UID)
}

// UpdateOwnEmail changes the email after re-checking the current password.
func (s *Service) UpdateOwnEmail(ctx context.Context, username, password, newEmail string, scope acs.Scope) (*entity.Profile, error) {
	if err := s.checkPassword(ctx, username, password, "update-own-email"); err != nil {
		return nil, err
	}
	return s.UpdateEmail(ctx, username, newEmail, scope)
}

// UpdatePhone stores a new phone and sends a fresh confirmation code.
func (s *Service) UpdatePhone(ctx context.Context, username, phone string, scope acs.Scope) (*entity.Profile, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "phone", "phone is required")
	}
	code, err := utilities.NewNumericCode(phoneCodeLength)
	if err != nil {
		return nil, apperr.Internal(err, "phone code")
	}
	var uid string
	err = database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.persons.UpdatePhoneByUsername(ctx, tx, username, phone, scope)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("profile")
		}
		u, err := s.users.GetByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		uid = u.UID
		if err := s.details.UnconfirmPhone(ctx, tx, u.UID, code); err != nil {
			return err
		}
		return s.refreshStatus(ctx, tx, u)
	})
	if err != nil {
		return nil, s.wrap(err, "update phone")
	}
	if err := s.notifier.SendPhoneConfirmation(ctx, phone, code); err != nil {
		s.logger.Warnw("profile.phone.notify-failed", "uid", uid, "err", err)
	}
	return s.load(ctx, s.db, uid)
}

// ConfirmEmail consumes an email confirmation code and returns the user uid.
func (s *Service) ConfirmEmail(ctx context.Context, code string) (string, error) {
	var uid string
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		uid, err = s.details.ConfirmEmail(ctx, tx, code)
		if err != nil {
			return s.lookupErr(err, "email-confirmation")
		}
		u, err := s.users.GetByUID(ctx, tx, uid, acs.GrandAccess())
		if err != nil {
			return s.lookupErr(err, "email-confirmation")
		}
		return s.refreshStatus(ctx, tx, u)
	})
	if err != nil {
		return "", s.wrap(err, "confirm email")
	}
	s.logger.Infow("profile.email.confirmed", "uid", uid)
	return uid, nil
}

// ConfirmPhone marks the phone of the account as confirmed when code matches.
func (s *Service) ConfirmPhone(ctx context.Context, username, code string, scope acs.Scope) (*entity.Profile, error) {
	var uid string
	err := database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.details.ConfirmPhone(ctx, tx, username, code, scope)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("phone-confirmation")
		}
		u, err := s.users.GetByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		uid = u.UID
		return s.refreshStatus(ctx, tx, u)
	})
	if err != nil {
		return nil, s.wrap(err, "confirm phone")
	}
	return s.load(ctx, s.db, uid)
}

// UpdatePassword replaces the password of the account.
func (s *Service) UpdatePassword(ctx context.Context, username, newPassword string, scope acs.Scope) error {
	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, user.ErrEmptyPassword) {
		return apperr.Validation(apperr.CodeFieldRequired, "password", "password is required")
	}
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	n, err := s.users.UpdatePassword(ctx, s.db, username, hash, scope)
	if err != nil {
		return apperr.Internal(err, "update password")
	}
	if n == 0 {
		return notFound("update-password")
	}
	return nil
}

// UpdateOwnPassword replaces the password after re-checking the current one.
func (s *Service) UpdateOwnPassword(ctx context.Context, username, oldPassword, newPassword string, scope acs.Scope) error {
	if err := s.checkPassword(ctx, username, oldPassword, "update-password"); err != nil {
		return err
	}
	return s.UpdatePassword(ctx, username, newPassword, scope)
}

// ResetPassword issues a restoration code for the account owning the email.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := s.users.GetByPersonEmail(ctx, s.db, email)
	if err != nil {
		return s.lookupErr(err, "my-profile")
	}
	code := utilities.NewSecretCode()
	ok, err := s.details.StartPasswordRestoration(ctx, s.db, email, code, s.reset.Cooldown)
	if err != nil {
		return apperr.Internal(err, "start password restoration")
	}
	if !ok {
		return apperr.Validation(apperr.CodeTooManyResendingCodes, "profile", "a code was sent recently")
	}
	lang := userentity.LanguageUA
	if d, err := s.details.GetByUID(ctx, s.db, u.UID); err == nil {
		lang = d.Language
	}
	if err := s.notifier.SendPasswordReset(ctx, email, lang, code); err != nil {
		s.logger.Warnw("profile.password-reset.notify-failed", "uid", u.UID, "err", err)
	}
	return nil
}

// SetNewPassword consumes a restoration code and sets the password. Codes
// older than the policy TTL are rejected. Every session of the account is
// dropped.
func (s *Service) SetNewPassword(ctx context.Context, code, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, user.ErrEmptyPassword) {
		return apperr.Validation(apperr.CodeFieldRequired, "password", "password is required")
	}
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	err = database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		uid, err := s.details.ConsumePasswordRestoration(ctx, tx, code, s.now().UTC().Add(-s.reset.CodeTTL))
		if err != nil {
			return s.lookupErr(err, "set-new-password")
		}
		u, err := s.users.GetByUID(ctx, tx, uid, acs.GrandAccess())
		if err != nil {
			return s.lookupErr(err, "set-new-password")
		}
		if err := s.users.SetPasswordByUID(ctx, tx, uid, hash); err != nil {
			return err
		}
		return s.sessions.DeleteByUsername(ctx, tx, u.Username)
	})
	return s.wrap(err, "set new password")
}

// UnlinkSocial detaches a provider account from the profile with the email.
func (s *Service) UnlinkSocial(ctx context.Context, email string, provider userentity.SocialProvider, scope acs.Scope) error {
	n, err := s.users.ClearSocialID(ctx, s.db, strings.ToLower(email), provider, scope)
	if err != nil {
		return apperr.Internal(err, "unlink social")
	}
	if n == 0 {
		return notFound("unlink-" + string(provider))
	}
	s.logger.Infow("profile.social.unlinked", "email", email, "provider", provider)
	return nil
}

func (s *Service) checkPassword(ctx context.Context, username, password, source string) error {
	u, err := s.users.GetByUsername(ctx, s.db, username)
	if err != nil {
		return s.lookupErr(err, source)
	}
	if !s.hasher.Verify(u.Password, password) {
		return apperr.Unauthorized(apperr.CodeDontMatch, source, "password does not match")
	}
	return nil
}

// refreshStatus recomputes and stores the system status of u.
func (s *Service) refreshStatus(ctx context.Context, q sqlx.ExtContext, u *userentity.User) error {
	p, err := s.persons.GetByUID(ctx, q, u.PersonUID)
	if err != nil {
		return err
	}
	d, err := s.details.GetByUID(ctx, q, u.UID)
	if err != nil {
		return err
	}
	status := SystemStatus(u.SystemStatus, u.Role, p, d, s.now().UTC())
	if status == u.SystemStatus {
		return nil
	}
	s.logger.Debugw("profile.status.changed", "uid", u.UID, "from", u.SystemStatus, "to", status)
	u.SystemStatus = status
	return s.users.UpdateSystemStatus(ctx, q, u.UID, status)
}

func (s *Service) load(ctx context.Context, q sqlx.ExtContext, uid string) (*entity.Profile, error) {
	u, err := s.users.GetByUID(ctx, q, uid, acs.GrandAccess())
	if err != nil {
		return nil, s.lookupErr(err, "profile")
	}
	p, err := s.persons.GetByUID(ctx, q, u.PersonUID)
	if err != nil {
		return nil, s.lookupErr(err, "profile")
	}
	d, err := s.details.GetByUID(ctx, q, u.UID)
	if err != nil {
		return nil, s.lookupErr(err, "profile")
	}
	return &entity.Profile{User: *u, Person: *p, Details: *d}, nil
}

// lookupErr maps a missing row to NotFound and anything else to Internal.
func (s *Service) lookupErr(err error, source string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(source)
	}
	return apperr.Internal(err, source)
}

func (s *Service) wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err, msg)
}
