package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting/entity"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

// Repo reads and writes user preferences. The table is owned by the user
// package; rows are addressed by username and restricted by scope.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

const byUsername = `uid IN (SELECT uid FROM users WHERE username = ? AND deleted_at IS NULL)`

// Get returns the settings of the user visible to scope or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, q sqlx.ExtContext, username string, scope acs.Scope) (*entity.Settings, error) {
	p := scope.Restrict("uid")
	var s entity.Settings
	err := sqlx.GetContext(ctx, q, &s, q.Rebind(`SELECT language, notify_about_new_poll, notify_email
		FROM user_details WHERE `+byUsername+` AND `+p.SQL),
		append([]any{username}, p.Args...)...)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update overwrites every preference. Returns affected rows.
func (r *Repo) Update(ctx context.Context, q sqlx.ExtContext, username string, s entity.Settings, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details
		SET language = ?, notify_about_new_poll = ?, notify_email = ?
		WHERE `+byUsername+` AND `+p.SQL),
		append([]any{s.Language, s.NotifyAboutNewPoll, s.NotifyEmail, username}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateLanguage changes only the interface language. Returns affected rows.
func (r *Repo) UpdateLanguage(ctx context.Context, q sqlx.ExtContext, username string, language userentity.Language, scope acs.Scope) (int64, error) {
	p := scope.Restrict("uid")
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE user_details SET language = ? WHERE `+byUsername+` AND `+p.SQL),
		append([]any{language, username}, p.Args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
