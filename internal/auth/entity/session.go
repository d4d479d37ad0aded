package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HeaderInfo is the client fingerprint bound into a refresh token hash.
type HeaderInfo struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

// Value stores HeaderInfo as JSON text.
func (h HeaderInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan accepts JSON from jsonb (postgres) or text (sqlite) columns.
func (h *HeaderInfo) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*h = HeaderInfo{}
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("header info: unsupported type %T", src)
	}
}

// AuthData is a persisted session: one row per issued refresh token.
type AuthData struct {
	UID              string     `db:"uid"`
	Username         string     `db:"username"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	HeaderInfo       HeaderInfo `db:"header_info"`
	DeviceToken      *string    `db:"device_token"`
	CreatedAt        time.Time  `db:"created_at"`
}

// NotificationAuthData is the push fan-out read model.
type NotificationAuthData struct {
	UserUID     string    `db:"user_uid" json:"userUid"`
	Username    string    `db:"username" json:"username"`
	DeviceToken string    `db:"device_token" json:"deviceToken"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// RefreshToken is an opaque token id and its fingerprint hash.
type RefreshToken struct {
	Token string
	Hash  string
}

// Tokens is the pair handed to a client after login or refresh.
type Tokens struct {
	AuthToken    string
	RefreshToken RefreshToken
	IsNew        bool
}
