package entity

import "time"

// Image is an uploaded binary owned by a user.
type Image struct {
	UID          string    `db:"uid" json:"uid"`
	OriginalName string    `db:"original_name" json:"originalName"`
	Entity       string    `db:"entity" json:"entity"`
	IsPublic     bool      `db:"is_public" json:"isPublic"`
	MimeType     string    `db:"mime_type" json:"mimeType"`
	Data         []byte    `db:"data" json:"-"`
	OwnerUID     string    `db:"owner_uid" json:"ownerUid"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
