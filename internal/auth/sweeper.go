package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/auth/repo"
)

// DefaultSweepSchedule runs the session sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// Sweeper periodically deletes sessions too old to be refreshed.
type Sweeper struct {
	db         *sqlx.DB
	sessions   *repo.SessionRepo
	maxAgeDays int
	logger     *zap.SugaredLogger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

func NewSweeper(db *sqlx.DB, sessions *repo.SessionRepo, maxAgeDays int, logger *zap.SugaredLogger) *Sweeper {
	if sessions == nil {
		sessions = repo.NewSessionRepo(repo.DefaultMaxSessions)
	}
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultRefreshTokenMaxAgeDays
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Sweeper{
		db:         db,
		sessions:   sessions,
		maxAgeDays: maxAgeDays,
		logger:     logger,
		cron:       cron.New(cron.WithParser(parser)),
	}
}

// SweepOnce deletes expired sessions and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.maxAgeDays)
	n, err := s.sessions.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	s.logger.Infow("auth.sweep.done", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Start schedules the sweep. Calling Start twice is a no-op.
func (s *Sweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Errorw("auth.sweep.failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Infow("auth.sweep.scheduled", "schedule", schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}
