package repo

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
)

// ProfileRepo runs read queries spanning users and person.
type ProfileRepo struct{}

func NewProfileRepo() *ProfileRepo { return &ProfileRepo{} }

// UserUIDByEmail returns the uid of the live user whose person has the email,
// restricted to the scope, or sql.ErrNoRows.
func (r *ProfileRepo) UserUIDByEmail(ctx context.Context, q sqlx.ExtContext, email string, scope acs.Scope) (string, error) {
	p := scope.Restrict("u.uid")
	var uid string
	err := sqlx.GetContext(ctx, q, &uid, q.Rebind(`SELECT u.uid FROM users u JOIN person p ON p.uid = u.person_uid
		WHERE p.email = ? AND p.deleted_at IS NULL AND u.deleted_at IS NULL AND `+p.SQL),
		append([]any{email}, p.Args...)...)
	return uid, err
}

// UserUIDByUsername returns the uid of the live user visible to the scope.
func (r *ProfileRepo) UserUIDByUsername(ctx context.Context, q sqlx.ExtContext, username string, scope acs.Scope) (string, error) {
	p := scope.Restrict("uid")
	var uid string
	err := sqlx.GetContext(ctx, q, &uid, q.Rebind(`SELECT uid FROM users
		WHERE username = ? AND deleted_at IS NULL AND `+p.SQL),
		append([]any{username}, p.Args...)...)
	return uid, err
}

// List returns one page of live profiles visible to the scope and the total count.
func (r *ProfileRepo) List(ctx context.Context, q sqlx.ExtContext, f entity.Filter, scope acs.Scope) ([]entity.ListItem, int, error) {
	f.Normalize()
	where := []string{"u.deleted_at IS NULL"}
	var args []any
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, `(lower(p.email) LIKE ? OR lower(p.first_name) LIKE ? OR lower(p.last_name) LIKE ?
			OR lower(p.legal_name) LIKE ? OR lower(u.username) LIKE ?)`)
		args = append(args, like, like, like, like, like)
	}
	if f.Role != "" {
		where = append(where, "u.role = ?")
		args = append(args, f.Role)
	}
	if f.Status != "" {
		where = append(where, "u.system_status = ?")
		args = append(args, f.Status)
	}
	pred := scope.Restrict("u.uid")
	where = append(where, pred.SQL)
	args = append(args, pred.Args...)

	from := ` FROM users u JOIN person p ON p.uid = u.person_uid WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := sqlx.GetContext(ctx, q, &total, q.Rebind(`SELECT count(*)`+from), args...); err != nil {
		return nil, 0, err
	}
	items := []entity.ListItem{}
	err := sqlx.SelectContext(ctx, q, &items, q.Rebind(`SELECT u.uid, u.username, u.role, u.system_status,
		p.email, p.first_name, p.last_name, p.legal_name, u.last_login_at, u.created_at`+from+`
		ORDER BY u.created_at DESC, u.uid LIMIT ? OFFSET ?`),
		append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
