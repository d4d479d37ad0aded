// Package subscriber exposes push notification targets derived from sessions.
package subscriber

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	authentity "github.com/ovaphlow/pitchfork/service-identity/internal/auth/entity"
	authrepo "github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-identity/internal/subscriber/entity"
)

type Service struct {
	db       *sqlx.DB
	sessions *authrepo.SessionRepo
	logger   *zap.SugaredLogger
}

func NewService(db *sqlx.DB, sessions *authrepo.SessionRepo, logger *zap.SugaredLogger) *Service {
	return &Service{db: db, sessions: sessions, logger: logger}
}

// DeviceTokens lists the newest device of each given user.
func (s *Service) DeviceTokens(ctx context.Context, userUIDs []string) ([]entity.Subscriber, error) {
	if len(userUIDs) == 0 {
		return []entity.Subscriber{}, nil
	}
	rows, err := s.sessions.GetDeviceTokens(ctx, s.db, userUIDs)
	if err != nil {
		return nil, apperr.Internal(err, "device tokens")
	}
	return toSubscribers(rows), nil
}

// NewPollSubscribers lists the newest device of each user opted in to new
// poll notifications.
func (s *Service) NewPollSubscribers(ctx context.Context) ([]entity.Subscriber, error) {
	rows, err := s.sessions.GetTokenDataForNewPollNotification(ctx, s.db)
	if err != nil {
		return nil, apperr.Internal(err, "new poll subscribers")
	}
	s.logger.Debugw("subscriber.new_poll", "count", len(rows))
	return toSubscribers(rows), nil
}

func toSubscribers(rows []authentity.NotificationAuthData) []entity.Subscriber {
	out := make([]entity.Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.Subscriber{
			UserUID:     r.UserUID,
			Username:    r.Username,
			DeviceToken: r.DeviceToken,
			SessionAt:   r.CreatedAt,
		})
	}
	return out
}
