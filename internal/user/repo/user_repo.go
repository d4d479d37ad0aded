package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// UserRepo provides data access for the users table. Every method takes the
// handle (db or tx) it runs on.
type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

const userColumns = `uid, username, password, role, system_status, person_uid,
	google_id, facebook_id, last_login_at, created_at, deleted_at`

// EnsureTable creates the users table if not exists (idempotent).
// The person table must exist first.
func (r *UserRepo) EnsureTable(ctx context.Context, db *sqlx.DB) error {
	return database.ExecDDL(ctx, db, `
CREATE TABLE IF NOT EXISTS users (
  uid VARCHAR(36) PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL DEFAULT '',
  role VARCHAR(16) NOT NULL,
  system_status VARCHAR(16) NOT NULL DEFAULT 'SUSPENDED',
  person_uid VARCHAR(36) NOT NULL UNIQUE REFERENCES person(uid),
  google_id TEXT UNIQUE,
  facebook_id TEXT UNIQUE,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
	)
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, q sqlx.ExtContext, u *entity.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO users
		(uid, username, password, role, system_status, person_uid, google_id, facebook_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.UID, u.Username, u.Password, u.Role, u.SystemStatus, u.PersonUID, u.GoogleID, u.FacebookID, u.CreatedAt)
	return err
}

// GetByUID returns a live user visible to the scope or sql.ErrNoRows.
func (r *UserRepo) GetByUID(ctx context.Context, q sqlx.ExtContext, uid string, scope acs.Scope) (*entity.User, error) {
	p := scope.Restrict("uid")
	var u entity.User
	err := sqlx.GetContext(ctx, q, &u,
		q.Rebind(`SELECT `+userColumns+` FROM users WHERE uid = ? AND deleted_at IS NULL AND `+p.SQL),
		append([]any{uid}, p.Args...)...)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches a live user by username or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, q sqlx.ExtContext, username string) (*entity.User, error) {
	return r.getBy(ctx, q, "username", username)
}

// GetByGoogleID fetches a live user linked to a Google account.
func (r *UserRepo) GetByGoogleID(ctx context.Context, q sqlx.ExtContext, googleID string) (*entity.User, error) {
	return r.getBy(ctx, q, "google_id", googleID)
}

// GetByFacebookID fetches a live user linked to a Facebook account.
func (r *UserRepo) GetByFacebookID(ctx context.Context, q sqlx.ExtContext, facebookID string) (*entity.User, error) {
	return r.getBy(ctx, q, "facebook_id", facebookID)
}

// GetByPersonEmail fetches the live user owning the person with that email.
func (r *UserRepo) GetByPersonEmail(ctx context.Context, q sqlx.ExtContext, email string) (*entity.User, error) {
	var u entity.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+prefixed("u", userColumns)+`
		FROM users u JOIN person p ON p.uid = u.person_uid
		WHERE p.email = ? AND p.deleted_at IS NULL AND u.deleted_at IS NULL`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) getBy(ctx context.Context, q sqlx.ExtContext, column, value string) (*entity.User, error) {
	var u entity.User
	err := sqlx.GetContext(ctx, q, &u,
		q.Rebind(`SELECT `+userColumns+` FROM users WHERE `+column+` = ? AND deleted_at IS NULL`), value)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, q sqlx.ExtContext, uid string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET last_login_at = ? WHERE uid = ?`), time.Now().UTC(), uid)
	return err
}

// UpdateSystemStatus sets the derived status; banned users keep their status.
func (r *UserRepo) UpdateSystemStatus(ctx context.Context, q sqlx.ExtContext, uid string, status entity.SystemStatus) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET system_status = ? WHERE uid = ? AND system_status <> ?`),
		status, uid, entity.StatusBanned)
	return err
}

// Ban marks the user as banned. Returns affected rows.
func (r *UserRepo) Ban(ctx context.Context, q sqlx.ExtContext, username string) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET system_status = ? WHERE username = ? AND deleted_at IS NULL`),
		entity.StatusBanned, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateUsername renames a user visible to the scope. Returns affected rows.
func (r *UserRepo) UpdateUsername(ctx context.Context, q sqlx.ExtContext, username, newUsername string, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE users SET username = ? WHERE username = ? AND deleted_at IS NULL AND `+p.SQL),
		append([]any{newUsername, username}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdatePassword replaces the stored hash of a user visible to the scope.
func (r *UserRepo) UpdatePassword(ctx context.Context, q sqlx.ExtContext, username, hash string, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE users SET password = ? WHERE username = ? AND deleted_at IS NULL AND `+p.SQL),
		append([]any{hash, username}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetPasswordByUID replaces the stored hash without scope checks; used by
// password restoration where possession of the code is the authorization.
func (r *UserRepo) SetPasswordByUID(ctx context.Context, q sqlx.ExtContext, uid, hash string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET password = ? WHERE uid = ?`), hash, uid)
	return err
}

// ClearSocialID unlinks a provider account from the user owning the email.
func (r *UserRepo) ClearSocialID(ctx context.Context, q sqlx.ExtContext, email string, provider entity.SocialProvider, scope acs.Scope) (int64, error) {
	column := "google_id"
	if provider == entity.ProviderFacebook {
		column = "facebook_id"
	}
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET `+column+` = NULL
		WHERE deleted_at IS NULL AND person_uid IN (SELECT uid FROM person WHERE email = ? AND deleted_at IS NULL) AND `+p.SQL),
		append([]any{email}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete keeps the row but frees the username and drops credentials.
func (r *UserRepo) SoftDelete(ctx context.Context, q sqlx.ExtContext, uid string, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users
		SET role = ?, username = ?, password = '', google_id = NULL, facebook_id = NULL, deleted_at = ?
		WHERE uid = ? AND deleted_at IS NULL AND `+p.SQL),
		append([]any{entity.RoleDeleted, entity.DeletedUsername(uid), time.Now().UTC(), uid}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
