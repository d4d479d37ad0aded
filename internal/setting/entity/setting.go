package entity

import userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"

// Settings are the user preferences kept next to confirmation state in
// user_details.
type Settings struct {
	Language           userentity.Language `db:"language" json:"language"`
	NotifyAboutNewPoll bool                `db:"notify_about_new_poll" json:"notifyAboutNewPoll"`
	NotifyEmail        bool                `db:"notify_email" json:"notifyEmail"`
}
