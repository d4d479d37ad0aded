package entity

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleModerator     Role = "MODERATOR"
	RoleJournalist    Role = "JOURNALIST"
	RolePrivate       Role = "PRIVATE"
	RoleLegal         Role = "LEGAL"
	RoleAnonymous     Role = "ANONYMOUS"
	RoleDeleted       Role = "DELETED"
)

// Roles lists every role in declaration order.
var Roles = []Role{RoleAdministrator, RoleModerator, RoleJournalist, RolePrivate, RoleLegal, RoleAnonymous, RoleDeleted}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// SystemStatus is the coarse account state derived from profile completeness.
type SystemStatus string

const (
	StatusActive    SystemStatus = "ACTIVE"
	StatusLimited   SystemStatus = "LIMITED"
	StatusSuspended SystemStatus = "SUSPENDED"
	StatusBanned    SystemStatus = "BANNED"
)

// User represents an account row in the `users` table.
type User struct {
	UID          string       `db:"uid" json:"uid"`
	Username     string       `db:"username" json:"username"`
	Password     string       `db:"password" json:"-"`
	Role         Role         `db:"role" json:"role"`
	SystemStatus SystemStatus `db:"system_status" json:"systemStatus"`
	PersonUID    string       `db:"person_uid" json:"personUid"`
	GoogleID     *string      `db:"google_id" json:"googleId,omitempty"`
	FacebookID   *string      `db:"facebook_id" json:"facebookId,omitempty"`
	LastLoginAt  *time.Time   `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	DeletedAt    *time.Time   `db:"deleted_at" json:"-"`
}

func (u *User) Banned() bool { return u.SystemStatus == StatusBanned }

// SocialProvider names a third-party identity provider.
type SocialProvider string

const (
	ProviderGoogle   SocialProvider = "google"
	ProviderFacebook SocialProvider = "facebook"
)

// SocialUsername builds the synthetic username of a provider-linked account.
func SocialUsername(p SocialProvider, providerID string) string {
	return providerID + "@" + string(p)
}

// IsSocialUsername reports whether username was created for a provider-linked account.
func IsSocialUsername(username string) bool {
	return strings.HasSuffix(username, "@"+string(ProviderGoogle)) ||
		strings.HasSuffix(username, "@"+string(ProviderFacebook))
}

// DeletedUsername frees the username of a soft-deleted account.
func DeletedUsername(uid string) string {
	return "deleted:" + uid
}
