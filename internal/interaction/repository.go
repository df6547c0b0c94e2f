package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository interface {
	Upsert(ctx context.Context, sessionID, productID int64, d Delta, occurredAt time.Time) error
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

// Upsert folds one record's delta into the pair's aggregate in a single
// statement. The unique constraint on (user_session_id, product_id) plus
// in-place increments keep concurrent writers from losing updates; a
// read-then-write split here would reintroduce that race.
func (r *repository) Upsert(ctx context.Context, sessionID, productID int64, d Delta, occurredAt time.Time) error {
	query := `
		INSERT INTO product_interactions (
			user_session_id, product_id, total_hover_ms, total_hovers,
			total_views, total_clicks, first_interaction, last_interaction
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_session_id, product_id) DO UPDATE SET
			total_hover_ms   = product_interactions.total_hover_ms + EXCLUDED.total_hover_ms,
			total_hovers     = product_interactions.total_hovers + EXCLUDED.total_hovers,
			total_views      = product_interactions.total_views + EXCLUDED.total_views,
			total_clicks     = product_interactions.total_clicks + EXCLUDED.total_clicks,
			last_interaction = GREATEST(product_interactions.last_interaction, EXCLUDED.last_interaction)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		sessionID,
		productID,
		d.HoverMs,
		d.Hovers,
		d.Views,
		d.Clicks,
		occurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert interaction aggregate",
			zap.Error(err),
			zap.Int64("session_id", sessionID),
			zap.Int64("product_id", productID),
		)
		return fmt.Errorf("failed to upsert interaction aggregate: %w", err)
	}

	r.logger.Debug("Interaction aggregate updated",
		zap.Int64("session_id", sessionID),
		zap.Int64("product_id", productID),
		zap.Int64("hover_ms", d.HoverMs),
		zap.Int64("views", d.Views),
		zap.Int64("clicks", d.Clicks),
	)

	return nil
}
