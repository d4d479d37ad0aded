package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-identity/internal/image/entity"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// ImageRepo stores images in the image table.
type ImageRepo struct{}

func NewImageRepo() *ImageRepo { return &ImageRepo{} }

// EnsureTable creates the image table if not exists.
func (r *ImageRepo) EnsureTable(ctx context.Context, db *sqlx.DB) error {
	return database.ExecDDL(ctx, db, `
CREATE TABLE IF NOT EXISTS image (
  uid VARCHAR(36) PRIMARY KEY,
  original_name TEXT NOT NULL DEFAULT '',
  entity VARCHAR(32) NOT NULL DEFAULT '',
  is_public BOOLEAN NOT NULL DEFAULT false,
  mime_type VARCHAR(128) NOT NULL,
  data BYTEA NOT NULL,
  owner_uid VARCHAR(36) NOT NULL REFERENCES users(uid),
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_image_owner_uid ON image(owner_uid)`,
	)
}

func (r *ImageRepo) Create(ctx context.Context, q sqlx.ExtContext, img *entity.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO image
		(uid, original_name, entity, is_public, mime_type, data, owner_uid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		img.UID, img.OriginalName, img.Entity, img.IsPublic, img.MimeType, img.Data, img.OwnerUID, img.CreatedAt)
	return err
}

// GetVisible returns the image when it is public or owned by viewerUID,
// sql.ErrNoRows otherwise.
func (r *ImageRepo) GetVisible(ctx context.Context, q sqlx.ExtContext, uid, viewerUID string) (*entity.Image, error) {
	var img entity.Image
	err := sqlx.GetContext(ctx, q, &img, q.Rebind(`SELECT uid, original_name, entity, is_public, mime_type, data, owner_uid, created_at
		FROM image WHERE uid = ? AND (is_public = ? OR owner_uid = ?)`), uid, true, viewerUID)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
