package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// PersonRepo provides data access for the person table.
type PersonRepo struct{}

func NewPersonRepo() *PersonRepo { return &PersonRepo{} }

const Columns = `uid, email, first_name, middle_name, last_name, job_title, legal_name, short_name,
	tagline, phone, birthday_at, gender, bio, avatar, created_at, deleted_at`

// EnsureTable creates the person table if not exists.
func (r *PersonRepo) EnsureTable(ctx context.Context, db *sqlx.DB) error {
	return database.ExecDDL(ctx, db, `
CREATE TABLE IF NOT EXISTS person (
  uid VARCHAR(36) PRIMARY KEY,
  email TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  middle_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  job_title TEXT NOT NULL DEFAULT '',
  legal_name TEXT NOT NULL DEFAULT '',
  short_name TEXT NOT NULL DEFAULT '',
  tagline TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  birthday_at TIMESTAMPTZ,
  gender VARCHAR(8) NOT NULL DEFAULT 'UNSET',
  bio TEXT NOT NULL DEFAULT '',
  avatar TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_person_email ON person(email)`,
		// one live person per email; registration races surface as unique violations
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_person_email_live ON person(email)
  WHERE deleted_at IS NULL AND email <> ''`,
	)
}

// Create inserts a person row.
func (r *PersonRepo) Create(ctx context.Context, q sqlx.ExtContext, p *entity.Person) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Gender == "" {
		p.Gender = entity.GenderUnset
	}
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO person
		(uid, email, first_name, middle_name, last_name, job_title, legal_name, short_name,
		 tagline, phone, birthday_at, gender, bio, avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.UID, p.Email, p.FirstName, p.MiddleName, p.LastName, p.JobTitle, p.LegalName, p.ShortName,
		p.Tagline, p.Phone, utc(p.BirthdayAt), p.Gender, p.Bio, p.Avatar, p.CreatedAt)
	return err
}

// GetByEmail returns the live person with that email or sql.ErrNoRows.
func (r *PersonRepo) GetByEmail(ctx context.Context, q sqlx.ExtContext, email string) (*entity.Person, error) {
	var p entity.Person
	err := sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+Columns+` FROM person
		WHERE email = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1`), email)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByUID returns the person row, live or deleted, or sql.ErrNoRows.
func (r *PersonRepo) GetByUID(ctx context.Context, q sqlx.ExtContext, uid string) (*entity.Person, error) {
	var p entity.Person
	if err := sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+Columns+` FROM person WHERE uid = ?`), uid); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateByUsername overwrites the editable attributes of the person owned by
// username, restricted to users visible to the scope. Email is not touched.
func (r *PersonRepo) UpdateByUsername(ctx context.Context, q sqlx.ExtContext, username string, p *entity.Person, scope acs.Scope) (int64, error) {
	gender := p.Gender
	if gender == "" {
		gender = entity.GenderUnset
	}
	pred := scope.Restrict("uid")
	args := []any{p.FirstName, p.MiddleName, p.LastName, p.JobTitle, p.LegalName, p.ShortName,
		p.Tagline, utc(p.BirthdayAt), gender, p.Bio, p.Avatar, username}
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE person SET
		first_name = ?, middle_name = ?, last_name = ?, job_title = ?, legal_name = ?, short_name = ?,
		tagline = ?, birthday_at = ?, gender = ?, bio = ?, avatar = ?
		WHERE deleted_at IS NULL AND uid IN (
		    SELECT person_uid FROM users WHERE username = ? AND deleted_at IS NULL AND `+pred.SQL+`)`),
		append(args, pred.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateEmailByUsername changes the contact email of the person owned by username.
func (r *PersonRepo) UpdateEmailByUsername(ctx context.Context, q sqlx.ExtContext, username, email string, scope acs.Scope) (int64, error) {
	return r.updateFieldByUsername(ctx, q, "email", email, username, scope)
}

// UpdatePhoneByUsername changes the phone of the person owned by username.
func (r *PersonRepo) UpdatePhoneByUsername(ctx context.Context, q sqlx.ExtContext, username, phone string, scope acs.Scope) (int64, error) {
	return r.updateFieldByUsername(ctx, q, "phone", phone, username, scope)
}

func (r *PersonRepo) updateFieldByUsername(ctx context.Context, q sqlx.ExtContext, column, value, username string, scope acs.Scope) (int64, error) {
	pred := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE person SET `+column+` = ?
		WHERE deleted_at IS NULL AND uid IN (
		    SELECT person_uid FROM users WHERE username = ? AND deleted_at IS NULL AND `+pred.SQL+`)`),
		append([]any{value, username}, pred.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete clears personal data and stamps deleted_at.
func (r *PersonRepo) SoftDelete(ctx context.Context, q sqlx.ExtContext, uid string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE person SET
		email = '', first_name = '', middle_name = '', last_name = '', job_title = '', legal_name = '',
		short_name = '', tagline = '', phone = '', birthday_at = NULL, gender = ?, bio = '', avatar = '',
		deleted_at = ?
		WHERE uid = ?`), entity.GenderUnset, time.Now().UTC(), uid)
	return err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
