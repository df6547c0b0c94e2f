package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloess/interaction-analytics/internal/geo"
	"go.uber.org/zap"
)

type Service struct {
	repo       Repository
	locator    geo.Locator
	logger     *zap.Logger
	geoTimeout time.Duration
	now        func() time.Time
}

type ServiceOption func(*Service)

func WithGeoTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.geoTimeout = d }
}

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locator geo.Locator, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		locator:    locator,
		logger:     logger,
		geoTimeout: 5 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure resolves the origin to its session, creating one on first
// contact. Creation is idempotent: concurrent first contacts converge on
// a single row through the store's unique constraint. When touch is set,
// an existing session gets its last_seen bumped to the call time.
func (s *Service) Ensure(ctx context.Context, origin, userAgent string, touch bool) (*Session, error) {
	if origin == "" {
		return nil, ErrInvalidOrigin
	}

	sess, err := s.repo.FindByOrigin(ctx, origin)
	switch {
	case err == nil:
		if !touch {
			return sess, nil
		}
		now := s.now().UTC()
		if err := s.repo.Touch(ctx, origin, now, userAgent); err != nil {
			// A concurrent retention sweep could remove the row between
			// the lookup and the touch; fall through to recreate.
			if !errors.Is(err, ErrSessionNotFound) {
				return nil, fmt.Errorf("failed to touch session: %w", err)
			}
		} else {
			sess.LastSeen = now
			return sess, nil
		}
	case !errors.Is(err, ErrSessionNotFound):
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	loc := s.lookupLocation(ctx, origin)
	now := s.now().UTC()

	created, err := s.repo.Upsert(ctx, &Session{
		Origin:    origin,
		Country:   loc.Country,
		City:      loc.City,
		Region:    loc.Region,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		UserAgent: userAgent,
		FirstSeen: now,
		LastSeen:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Session ensured",
		zap.Int64("session_id", created.ID),
		zap.String("origin", created.Origin),
		zap.String("country", created.Country),
	)

	return created, nil
}

// AddActiveTime accumulates observed active time on the origin's session.
func (s *Service) AddActiveTime(ctx context.Context, origin string, ms int64) error {
	if origin == "" {
		return ErrInvalidOrigin
	}
	if ms <= 0 {
		return nil
	}

	if err := s.repo.AddActiveTime(ctx, origin, ms); err != nil {
		return fmt.Errorf("failed to accumulate active time: %w", err)
	}

	return nil
}

// lookupLocation is best-effort: a failed lookup yields unknown location
// fields and never blocks session creation.
func (s *Service) lookupLocation(ctx context.Context, origin string) geo.Location {
	lookupCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	loc, err := s.locator.Lookup(lookupCtx, origin)
	if err != nil {
		s.logger.Warn("Geolocation degraded to unknown",
			zap.Error(err),
			zap.String("origin", origin),
		)
		return geo.Unknown()
	}

	return loc
}
