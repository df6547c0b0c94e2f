package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Repository returns raw per-dimension sums; derived metrics (averages,
// interaction totals) are computed at read time by the Service.
type Repository interface {
	SessionRows(ctx context.Context, since time.Time) ([]*SessionRow, error)
	ProductRows(ctx context.Context, since time.Time) ([]*ProductRow, error)
	CountryRows(ctx context.Context, since time.Time) ([]*CountryRow, error)
}

type SessionRow struct {
	ID           int64     `db:"id"`
	Origin       string    `db:"ip_address"`
	Country      string    `db:"country"`
	City         string    `db:"city"`
	FirstSeen    time.Time `db:"first_seen"`
	LastSeen     time.Time `db:"last_seen"`
	TotalHoverMs int64     `db:"total_hover_ms"`
	TotalHovers  int64     `db:"total_hovers"`
	TotalViews   int64     `db:"total_views"`
	TotalClicks  int64     `db:"total_clicks"`
	Products     int64     `db:"products"`
}

type ProductRow struct {
	ProductID      int64 `db:"product_id"`
	UniqueSessions int64 `db:"unique_sessions"`
	TotalHoverMs   int64 `db:"total_hover_ms"`
	TotalHovers    int64 `db:"total_hovers"`
	TotalViews     int64 `db:"total_views"`
	TotalClicks    int64 `db:"total_clicks"`
}

type CountryRow struct {
	Country      string `db:"country"`
	Sessions     int64  `db:"sessions"`
	TotalHoverMs int64  `db:"total_hover_ms"`
	TotalHovers  int64  `db:"total_hovers"`
	TotalViews   int64  `db:"total_views"`
	TotalClicks  int64  `db:"total_clicks"`
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

func (r *repository) SessionRows(ctx context.Context, since time.Time) ([]*SessionRow, error) {
	query := `
		SELECT
			us.id, us.ip_address, us.country, us.city, us.first_seen, us.last_seen,
			COALESCE(SUM(pi.total_hover_ms), 0) AS total_hover_ms,
			COALESCE(SUM(pi.total_hovers), 0)  AS total_hovers,
			COALESCE(SUM(pi.total_views), 0)   AS total_views,
			COALESCE(SUM(pi.total_clicks), 0)  AS total_clicks,
			COUNT(DISTINCT pi.product_id)      AS products
		FROM user_sessions us
		JOIN product_interactions pi ON pi.user_session_id = us.id
		WHERE pi.last_interaction >= $1
		GROUP BY us.id, us.ip_address, us.country, us.city, us.first_seen, us.last_seen
		ORDER BY us.last_seen DESC
	`

	var rows []*SessionRow
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to get session rows: %w", err)
	}

	return rows, nil
}

func (r *repository) ProductRows(ctx context.Context, since time.Time) ([]*ProductRow, error) {
	query := `
		SELECT
			pi.product_id,
			COUNT(DISTINCT pi.user_session_id) AS unique_sessions,
			COALESCE(SUM(pi.total_hover_ms), 0) AS total_hover_ms,
			COALESCE(SUM(pi.total_hovers), 0)  AS total_hovers,
			COALESCE(SUM(pi.total_views), 0)   AS total_views,
			COALESCE(SUM(pi.total_clicks), 0)  AS total_clicks
		FROM product_interactions pi
		WHERE pi.last_interaction >= $1
		GROUP BY pi.product_id
		ORDER BY total_hover_ms DESC
	`

	var rows []*ProductRow
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to get product rows: %w", err)
	}

	return rows, nil
}

func (r *repository) CountryRows(ctx context.Context, since time.Time) ([]*CountryRow, error) {
	query := `
		SELECT
			us.country,
			COUNT(DISTINCT us.id)              AS sessions,
			COALESCE(SUM(pi.total_hover_ms), 0) AS total_hover_ms,
			COALESCE(SUM(pi.total_hovers), 0)  AS total_hovers,
			COALESCE(SUM(pi.total_views), 0)   AS total_views,
			COALESCE(SUM(pi.total_clicks), 0)  AS total_clicks
		FROM user_sessions us
		JOIN product_interactions pi ON pi.user_session_id = us.id
		WHERE pi.last_interaction >= $1
		  AND us.country IS NOT NULL
		  AND us.country <> ''
		  AND us.country <> 'Unknown'
		GROUP BY us.country
		ORDER BY sessions DESC
	`

	var rows []*CountryRow
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to get country rows: %w", err)
	}

	return rows, nil
}
