// Package image stores user uploaded pictures.
package image

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/image/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/image/repo"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/utilities"
)

// MaxSize caps an upload.
const MaxSize = 5 << 20

type Service struct {
	db     *sqlx.DB
	repo   *repo.ImageRepo
	logger *zap.SugaredLogger
}

func NewService(db *sqlx.DB, logger *zap.SugaredLogger) *Service {
	return &Service{db: db, repo: repo.NewImageRepo(), logger: logger}
}

// Save stores img on behalf of actorUID. An own-object scope pins the owner;
// a full access scope stores it as the actor's.
func (s *Service) Save(ctx context.Context, img entity.Image, scope acs.Scope, actorUID string) (*entity.Image, error) {
	if acs.Denied(scope) {
		return nil, apperr.Forbidden(apperr.CodeAccessDenied, "image", "not allowed to save images")
	}
	owner, ok := scope.OwnerUID()
	if !ok {
		owner = actorUID
	}
	if len(img.Data) == 0 {
		return nil, apperr.Validation(apperr.CodeFieldRequired, "image", "image is empty")
	}
	if len(img.Data) > MaxSize {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "image", "image is too large")
	}
	mt := mimetype.Detect(img.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "image", "unsupported image type "+mt.String())
	}
	img.UID = utilities.NewSnowflakeID()
	img.MimeType = mt.String()
	img.OwnerUID = owner
	if err := s.repo.Create(ctx, s.db, &img); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound(apperr.CodeEntityNotFound, "image", "owner not found")
		}
		return nil, apperr.Internal(err, "save image")
	}
	s.logger.Infow("image.save", "uid", img.UID, "owner", owner, "mime", img.MimeType, "size", len(img.Data))
	return &img, nil
}

// Get returns a public image or one owned by viewerUID.
func (s *Service) Get(ctx context.Context, uid, viewerUID string) (*entity.Image, error) {
	img, err := s.repo.GetVisible(ctx, s.db, uid, viewerUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeEntityNotFound, "image", "image not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "get image")
	}
	return img, nil
}
