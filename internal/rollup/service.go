package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidKind  = errors.New("unknown interaction kind")
	ErrInvalidRange = errors.New("range start must not be after its end")
)

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Process folds one accepted interaction into its hourly bucket.
func (s *Service) Process(ctx context.Context, msg *Message) error {
	summary := NewSummary(msg.OccurredAt, msg.Kind)
	summary.TotalEvents = 1
	summary.TotalDurationMs = msg.DurationMs

	if err := s.repo.UpsertSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}

	s.logger.Debug("Interaction rolled up",
		zap.String("kind", msg.Kind),
		zap.String("date", summary.BucketDate.Format("2006-01-02")),
		zap.Int("hour", summary.BucketHour),
	)

	return nil
}

// Timeline returns the hourly buckets between from and to inclusive,
// optionally narrowed to one interaction kind. Both bounds are dates;
// the hour lives inside each bucket.
func (s *Service) Timeline(ctx context.Context, from, to time.Time, kind string) ([]*Summary, error) {
	switch kind {
	case "", "view", "hover", "click":
	default:
		return nil, ErrInvalidKind
	}
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	summaries, err := s.repo.GetByDateRange(ctx, from, to, kind)
	if err != nil {
		s.logger.Error("Failed to get rollup timeline",
			zap.Error(err),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.String("kind", kind),
		)
		return nil, fmt.Errorf("failed to get rollup timeline: %w", err)
	}

	if summaries == nil {
		summaries = []*Summary{}
	}
	return summaries, nil
}

// MessageHandler adapts Process to the Kafka consumer callback.
func (s *Service) MessageHandler() func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var msg Message
		if err := json.Unmarshal(value, &msg); err != nil {
			s.logger.Error("Failed to unmarshal interaction message",
				zap.Error(err),
				zap.String("value", string(value)),
			)
			return err
		}

		return s.Process(ctx, &msg)
	}
}
