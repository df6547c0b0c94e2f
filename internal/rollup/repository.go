package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository interface {
	UpsertSummary(ctx context.Context, summary *Summary) error
	GetByDateRange(ctx context.Context, from, to time.Time, kind string) ([]*Summary, error)
}

type repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRepository(db *sqlx.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

func (r *repository) UpsertSummary(ctx context.Context, summary *Summary) error {
	query := `
		INSERT INTO interaction_rollups (bucket_date, bucket_hour, kind, total_events, total_duration_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bucket_date, bucket_hour, kind)
		DO UPDATE SET
			total_events      = interaction_rollups.total_events + EXCLUDED.total_events,
			total_duration_ms = interaction_rollups.total_duration_ms + EXCLUDED.total_duration_ms,
			updated_at        = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		summary.BucketDate,
		summary.BucketHour,
		summary.Kind,
		summary.TotalEvents,
		summary.TotalDurationMs,
		summary.UpdatedAt,
	).Scan(&summary.ID)

	if err != nil {
		r.logger.Error("Failed to upsert rollup", zap.Error(err))
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}

	r.logger.Debug("Rollup upserted",
		zap.String("date", summary.BucketDate.Format("2006-01-02")),
		zap.Int("hour", summary.BucketHour),
		zap.String("kind", summary.Kind),
		zap.Int64("total_events", summary.TotalEvents),
	)

	return nil
}

func (r *repository) GetByDateRange(ctx context.Context, from, to time.Time, kind string) ([]*Summary, error) {
	query := `
		SELECT id, bucket_date, bucket_hour, kind, total_events, total_duration_ms, updated_at
		FROM interaction_rollups
		WHERE bucket_date >= $1 AND bucket_date <= $2
	`
	args := []interface{}{from, to}

	if kind != "" {
		query += " AND kind = $3"
		args = append(args, kind)
	}

	query += " ORDER BY bucket_date, bucket_hour"

	var summaries []*Summary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get rollups: %w", err)
	}

	return summaries, nil
}
