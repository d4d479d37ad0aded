package entity

import (
	"time"

	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

// Profile is the identity aggregate: an account, its person and its details.
type Profile struct {
	userentity.User
	Person  personentity.Person `json:"person"`
	Details userentity.Details  `json:"userDetails"`
}

// NewProfile is the input for creating an account.
type NewProfile struct {
	Email    string              `json:"email" validate:"required,email"`
	Password string              `json:"password"`
	Role     userentity.Role     `json:"role" validate:"required"`
	Person   personentity.Person `json:"person"`

	// Username defaults to Email. Social accounts use the provider form.
	Username           string              `json:"-"`
	GoogleID           *string             `json:"-"`
	FacebookID         *string             `json:"-"`
	EmailConfirmed     bool                `json:"-"`
	Language           userentity.Language `json:"-"`
	NotifyAboutNewPoll bool                `json:"notifyAboutNewPoll"`
	NotifyEmail        bool                `json:"notifyEmail"`
}

// Social reports whether the account is linked to a provider at creation.
func (n *NewProfile) Social() bool {
	return n.GoogleID != nil || n.FacebookID != nil
}

// ListItem is one row of the profile listing.
type ListItem struct {
	UID          string                  `db:"uid" json:"uid"`
	Username     string                  `db:"username" json:"username"`
	Role         userentity.Role         `db:"role" json:"role"`
	SystemStatus userentity.SystemStatus `db:"system_status" json:"systemStatus"`
	Email        string                  `db:"email" json:"email"`
	FirstName    string                  `db:"first_name" json:"firstName"`
	LastName     string                  `db:"last_name" json:"lastName"`
	LegalName    string                  `db:"legal_name" json:"legalName"`
	LastLoginAt  *time.Time              `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time               `db:"created_at" json:"createdAt"`
}

// Filter narrows a profile listing.
type Filter struct {
	Search string
	Role   userentity.Role
	Status userentity.SystemStatus
	Page   int
	Limit  int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps paging to sane bounds.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
}

func (f Filter) Offset() int { return (f.Page - 1) * f.Limit }

// PagedList is one page of profiles with the total match count.
type PagedList struct {
	Items []ListItem `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
