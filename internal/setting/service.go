// Package setting manages per-user preferences.
package setting

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting/repo"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

const source = "user-details"

// Service encapsulates business logic for settings and depends on a repo.
type Service struct {
	db     *sqlx.DB
	repo   *repo.Repo
	logger *zap.SugaredLogger
}

// NewService constructs a Service with the provided repository.
func NewService(db *sqlx.DB, r *repo.Repo, logger *zap.SugaredLogger) *Service {
	if r == nil {
		r = repo.NewRepo()
	}
	return &Service{db: db, repo: r, logger: logger}
}

func notFound() error {
	return apperr.NotFound(apperr.CodeEntityNotFound, source, "user details not found")
}

// Get returns the settings of the user visible to scope.
func (s *Service) Get(ctx context.Context, username string, scope acs.Scope) (*entity.Settings, error) {
	st, err := s.repo.Get(ctx, s.db, username, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound()
	}
	if err != nil {
		return nil, apperr.Internal(err, "get settings")
	}
	return st, nil
}

// UpdateByUsername replaces every preference of the user visible to scope.
func (s *Service) UpdateByUsername(ctx context.Context, username string, in entity.Settings, scope acs.Scope) (*entity.Settings, error) {
	if in.Language == "" {
		in.Language = userentity.LanguageUA
	}
	if !in.Language.Valid() {
		return nil, apperr.Validation(apperr.CodeUnknownValidation, "language", "unsupported language")
	}
	n, err := s.repo.Update(ctx, s.db, username, in, scope)
	if err != nil {
		return nil, apperr.Internal(err, "update settings")
	}
	if n == 0 {
		return nil, notFound()
	}
	s.logger.Debugw("setting.update", "username", username)
	return &in, nil
}

// UpdateLanguage accepts short codes and BCP 47 tags.
func (s *Service) UpdateLanguage(ctx context.Context, username, language string, scope acs.Scope) (*entity.Settings, error) {
	lang := userentity.ParseLanguage(language)
	n, err := s.repo.UpdateLanguage(ctx, s.db, username, lang, scope)
	if err != nil {
		return nil, apperr.Internal(err, "update language")
	}
	if n == 0 {
		return nil, notFound()
	}
	return s.Get(ctx, username, scope)
}
