package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// DefaultMaxSessions is the session count per username that triggers eviction.
const DefaultMaxSessions = 5

// SessionRepo persists refresh-token sessions in auth_data.
type SessionRepo struct {
	maxSessions int
}

func NewSessionRepo(maxSessions int) *SessionRepo {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionRepo{maxSessions: maxSessions}
}

// EnsureTable creates the auth_data table if not exists.
func (r *SessionRepo) EnsureTable(ctx context.Context, db *sqlx.DB) error {
	return database.ExecDDL(ctx, db, `
CREATE TABLE IF NOT EXISTS auth_data (
  uid VARCHAR(64) PRIMARY KEY,
  username TEXT NOT NULL,
  refresh_token_hash TEXT NOT NULL,
  header_info JSONB NOT NULL,
  device_token TEXT,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_data_username ON auth_data(username)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_data_device_token ON auth_data(device_token)`,
	)
}

// SaveRefreshToken inserts a session row stamped with the current time.
func (r *SessionRepo) SaveRefreshToken(ctx context.Context, q sqlx.ExtContext, d *entity.AuthData) error {
	d.CreatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO auth_data
		(uid, username, refresh_token_hash, header_info, device_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		d.UID, d.Username, d.RefreshTokenHash, d.HeaderInfo, d.DeviceToken, d.CreatedAt)
	return err
}

// DropExceedingSessionsIfAny deletes every session of the username once it
// holds maxSessions or more. Eviction is bulk, not oldest-first.
func (r *SessionRepo) DropExceedingSessionsIfAny(ctx context.Context, q sqlx.ExtContext, username string) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM auth_data WHERE username IN (
		SELECT username FROM auth_data WHERE username = ? GROUP BY username HAVING count(*) >= ?)`),
		username, r.maxSessions)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DropDeviceTokenIfAny unbinds the device token from every session holding it.
func (r *SessionRepo) DropDeviceTokenIfAny(ctx context.Context, q sqlx.ExtContext, deviceToken string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE auth_data SET device_token = NULL WHERE device_token = ?`), deviceToken)
	return err
}

// Get returns the session with that refresh token id, or nil when absent.
func (r *SessionRepo) Get(ctx context.Context, q sqlx.ExtContext, uid string) (*entity.AuthData, error) {
	var d entity.AuthData
	err := sqlx.GetContext(ctx, q, &d, q.Rebind(`SELECT uid, username, refresh_token_hash, header_info, device_token, created_at
		FROM auth_data WHERE uid = ?`), uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete removes one session and reports how many rows went away. Zero
// means another caller already consumed it.
func (r *SessionRepo) Delete(ctx context.Context, q sqlx.ExtContext, uid string) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM auth_data WHERE uid = ?`), uid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByUsername removes every session of the username.
func (r *SessionRepo) DeleteByUsername(ctx context.Context, q sqlx.ExtContext, username string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM auth_data WHERE username = ?`), username)
	return err
}

// DeleteOlderThan removes sessions created before cutoff.
func (r *SessionRepo) DeleteOlderThan(ctx context.Context, q sqlx.ExtContext, cutoff time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM auth_data WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of sessions of the username.
func (r *SessionRepo) Count(ctx context.Context, q sqlx.ExtContext, username string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT count(*) FROM auth_data WHERE username = ?`), username)
	return n, err
}

// the newest session with a device token per user
const latestDeviceToken = `
SELECT u.uid AS user_uid, a.username AS username, a.device_token AS device_token, a.created_at AS created_at
FROM users u
JOIN auth_data a ON a.username = u.username
WHERE a.device_token IS NOT NULL
  AND u.deleted_at IS NULL
  AND a.created_at = (
      SELECT max(a2.created_at) FROM auth_data a2
      WHERE a2.username = a.username AND a2.device_token IS NOT NULL)`

// GetDeviceTokens returns the latest device token of each listed user.
func (r *SessionRepo) GetDeviceTokens(ctx context.Context, q sqlx.ExtContext, userUIDs []string) ([]entity.NotificationAuthData, error) {
	out := []entity.NotificationAuthData{}
	if len(userUIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(latestDeviceToken+` AND u.uid IN (?) ORDER BY u.uid`, userUIDs)
	if err != nil {
		return nil, err
	}
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTokenDataForNewPollNotification returns the latest device token of every
// user who opted into new poll notifications.
func (r *SessionRepo) GetTokenDataForNewPollNotification(ctx context.Context, q sqlx.ExtContext) ([]entity.NotificationAuthData, error) {
	out := []entity.NotificationAuthData{}
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(latestDeviceToken+`
  AND u.uid IN (SELECT d.uid FROM user_details d WHERE d.notify_about_new_poll = ?)
ORDER BY u.uid`), true)
	if err != nil {
		return nil, err
	}
	return out, nil
}
