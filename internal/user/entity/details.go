package entity

import "time"

// Details holds confirmation state and preferences stored in `user_details`.
type Details struct {
	UID                              string     `db:"uid" json:"-"`
	EmailConfirmed                   bool       `db:"email_confirmed" json:"emailConfirmed"`
	EmailConfirmationCode            *string    `db:"email_confirmation_code" json:"-"`
	PhoneConfirmed                   bool       `db:"phone_confirmed" json:"phoneConfirmed"`
	PhoneConfirmationCode            *string    `db:"phone_confirmation_code" json:"-"`
	PasswordRestorationCode          *string    `db:"password_restoration_code" json:"-"`
	PasswordRestorationCodeCreatedAt *time.Time `db:"password_restoration_code_created_at" json:"-"`
	Language                         Language   `db:"language" json:"language"`
	NotifyAboutNewPoll               bool       `db:"notify_about_new_poll" json:"notifyAboutNewPoll"`
	NotifyEmail                      bool       `db:"notify_email" json:"notifyEmail"`
	CreatedAt                        time.Time  `db:"created_at" json:"createdAt"`
}
