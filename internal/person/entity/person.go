package entity

import "time"

type Gender string

const (
	GenderUnset  Gender = "UNSET"
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

func (g Gender) Valid() bool {
	return g == GenderUnset || g == GenderMale || g == GenderFemale
}

// Person holds identity attributes owned 1:1 by a user.
type Person struct {
	UID        string     `db:"uid" json:"uid"`
	Email      string     `db:"email" json:"email"`
	FirstName  string     `db:"first_name" json:"firstName"`
	MiddleName string     `db:"middle_name" json:"middleName"`
	LastName   string     `db:"last_name" json:"lastName"`
	JobTitle   string     `db:"job_title" json:"jobTitle"`
	LegalName  string     `db:"legal_name" json:"legalName"`
	ShortName  string     `db:"short_name" json:"shortName"`
	Tagline    string     `db:"tagline" json:"tagline"`
	Phone      string     `db:"phone" json:"phone"`
	BirthdayAt *time.Time `db:"birthday_at" json:"birthdayAt,omitempty"`
	Gender     Gender     `db:"gender" json:"gender"`
	Bio        string     `db:"bio" json:"bio"`
	Avatar     string     `db:"avatar" json:"avatar"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}
