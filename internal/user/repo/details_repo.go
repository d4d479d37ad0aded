package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// DetailsRepo provides data access for confirmation state kept in user_details.
type DetailsRepo struct{}

func NewDetailsRepo() *DetailsRepo { return &DetailsRepo{} }

const detailsColumns = `uid, email_confirmed, email_confirmation_code, phone_confirmed, phone_confirmation_code,
	password_restoration_code, password_restoration_code_created_at, language,
	notify_about_new_poll, notify_email, created_at`

// EnsureTable creates the user_details table if not exists.
func (r *DetailsRepo) EnsureTable(ctx context.Context, db *sqlx.DB) error {
	return database.ExecDDL(ctx, db, `
CREATE TABLE IF NOT EXISTS user_details (
  uid VARCHAR(36) PRIMARY KEY REFERENCES users(uid),
  email_confirmed BOOLEAN NOT NULL DEFAULT false,
  email_confirmation_code TEXT UNIQUE,
  phone_confirmed BOOLEAN NOT NULL DEFAULT false,
  phone_confirmation_code TEXT,
  password_restoration_code TEXT UNIQUE,
  password_restoration_code_created_at TIMESTAMPTZ,
  language VARCHAR(8) NOT NULL DEFAULT 'ua',
  notify_about_new_poll BOOLEAN NOT NULL DEFAULT false,
  notify_email BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL
)`)
}

// Create inserts the details row of a new user.
func (r *DetailsRepo) Create(ctx context.Context, q sqlx.ExtContext, d *entity.Details) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Language == "" {
		d.Language = entity.LanguageUA
	}
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO user_details
		(uid, email_confirmed, email_confirmation_code, phone_confirmed, phone_confirmation_code,
		 language, notify_about_new_poll, notify_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.UID, d.EmailConfirmed, d.EmailConfirmationCode, d.PhoneConfirmed, d.PhoneConfirmationCode,
		d.Language, d.NotifyAboutNewPoll, d.NotifyEmail, d.CreatedAt)
	return err
}

// GetByUID returns the details row or sql.ErrNoRows.
func (r *DetailsRepo) GetByUID(ctx context.Context, q sqlx.ExtContext, uid string) (*entity.Details, error) {
	var d entity.Details
	if err := sqlx.GetContext(ctx, q, &d, q.Rebind(`SELECT `+detailsColumns+` FROM user_details WHERE uid = ?`), uid); err != nil {
		return nil, err
	}
	return &d, nil
}

// ConfirmEmail consumes an email confirmation code and returns the owner uid,
// or sql.ErrNoRows when no row holds the code.
func (r *DetailsRepo) ConfirmEmail(ctx context.Context, q sqlx.ExtContext, code string) (string, error) {
	var uid string
	if err := sqlx.GetContext(ctx, q, &uid, q.Rebind(`SELECT uid FROM user_details WHERE email_confirmation_code = ?`), code); err != nil {
		return "", err
	}
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET email_confirmed = ?, email_confirmation_code = NULL WHERE uid = ?`), true, uid)
	return uid, err
}

// ConfirmPhone marks the phone of the user visible to the scope as confirmed
// when code matches. Returns affected rows.
func (r *DetailsRepo) ConfirmPhone(ctx context.Context, q sqlx.ExtContext, username, code string, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET phone_confirmed = ?, phone_confirmation_code = NULL
		WHERE phone_confirmation_code = ?
		  AND uid IN (SELECT uid FROM users WHERE username = ? AND deleted_at IS NULL)
		  AND `+p.SQL),
		append([]any{true, code, username}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnconfirmEmail resets email confirmation with a fresh code.
func (r *DetailsRepo) UnconfirmEmail(ctx context.Context, q sqlx.ExtContext, uid, code string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET email_confirmed = ?, email_confirmation_code = ? WHERE uid = ?`), false, code, uid)
	return err
}

// UnconfirmPhone resets phone confirmation with a fresh code.
func (r *DetailsRepo) UnconfirmPhone(ctx context.Context, q sqlx.ExtContext, uid, code string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET phone_confirmed = ?, phone_confirmation_code = ? WHERE uid = ?`), false, code, uid)
	return err
}

// StartPasswordRestoration stores a restoration code for the user with the
// given person email unless a code was issued less than cooldown ago.
// It reports whether a code was stored.
func (r *DetailsRepo) StartPasswordRestoration(ctx context.Context, q sqlx.ExtContext, email, code string, cooldown time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET password_restoration_code = ?, password_restoration_code_created_at = ?
		WHERE uid IN (
		    SELECT u.uid FROM users u JOIN person p ON p.uid = u.person_uid
		    WHERE p.email = ? AND p.deleted_at IS NULL AND u.deleted_at IS NULL)
		  AND (password_restoration_code_created_at IS NULL OR password_restoration_code_created_at < ?)`),
		code, now, email, now.Add(-cooldown))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ConsumePasswordRestoration clears the code and returns the owner uid, or
// sql.ErrNoRows when the code is unknown or was issued before notBefore.
func (r *DetailsRepo) ConsumePasswordRestoration(ctx context.Context, q sqlx.ExtContext, code string, notBefore time.Time) (string, error) {
	var uid string
	err := sqlx.GetContext(ctx, q, &uid, q.Rebind(`SELECT uid FROM user_details
		WHERE password_restoration_code = ? AND password_restoration_code_created_at >= ?`), code, notBefore)
	if err != nil {
		return "", err
	}
	_, err = q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET password_restoration_code = NULL, password_restoration_code_created_at = NULL WHERE uid = ?`), uid)
	return uid, err
}

// Delete removes the details row of a user.
func (r *DetailsRepo) Delete(ctx context.Context, q sqlx.ExtContext, uid string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM user_details WHERE uid = ?`), uid)
	return err
}
