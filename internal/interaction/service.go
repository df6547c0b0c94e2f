package interaction

import (
	"context"
	"fmt"

	"github.com/cloess/interaction-analytics/internal/catalog"
	"github.com/cloess/interaction-analytics/internal/session"
	"go.uber.org/zap"
)

// Publisher forwards accepted records to the rollup pipeline. Publishing
// is best-effort: the aggregate write is the source of truth.
type Publisher interface {
	SendMessage(ctx context.Context, key string, value any) error
}

// Sessions resolves an origin to its durable session.
type Sessions interface {
	Ensure(ctx context.Context, origin, userAgent string, touch bool) (*session.Session, error)
}

type Service struct {
	repo          Repository
	catalog       catalog.Catalog
	sessions      Sessions
	publisher     Publisher
	logger        *zap.Logger
	touchSessions bool
}

func NewService(
	repo Repository,
	cat catalog.Catalog,
	sessions Sessions,
	publisher Publisher,
	touchSessions bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:          repo,
		catalog:       cat,
		sessions:      sessions,
		publisher:     publisher,
		logger:        logger,
		touchSessions: touchSessions,
	}
}

// Record validates one interaction and folds it into the (session, product)
// aggregate. Rejections happen before any write, so a failed call leaves
// no partial state. Unknown origins get a fresh session on the spot: the
// tracker's bootstrap call is not a precondition.
func (s *Service) Record(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		s.logger.Warn("Rejected interaction record",
			zap.Error(err),
			zap.String("kind", rec.Kind),
			zap.Int64("product_id", rec.ProductID),
		)
		return err
	}

	exists, err := s.catalog.Exists(ctx, rec.ProductID)
	if err != nil {
		return fmt.Errorf("failed to validate product: %w", err)
	}
	if !exists {
		s.logger.Warn("Interaction for unknown product",
			zap.Int64("product_id", rec.ProductID),
			zap.String("origin", rec.Origin),
		)
		return ErrProductNotFound
	}

	sess, err := s.sessions.Ensure(ctx, rec.Origin, rec.UserAgent, s.touchSessions)
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	if err := s.repo.Upsert(ctx, sess.ID, rec.ProductID, rec.Delta(), rec.OccurredAt); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.SendMessage(ctx, rec.Origin, rec); err != nil {
			s.logger.Error("Failed to publish interaction record",
				zap.Error(err),
				zap.String("origin", rec.Origin),
				zap.Int64("product_id", rec.ProductID),
			)
		}
	}

	s.logger.Info("Interaction recorded",
		zap.Int64("session_id", sess.ID),
		zap.Int64("product_id", rec.ProductID),
		zap.String("kind", rec.Kind),
		zap.Int64("duration_ms", rec.DurationMs),
	)

	return nil
}
