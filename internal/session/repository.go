package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository interface {
	FindByOrigin(ctx context.Context, origin string) (*Session, error)
	Upsert(ctx context.Context, sess *Session) (*Session, error)
	Touch(ctx context.Context, origin string, at time.Time, userAgent string) error
	AddActiveTime(ctx context.Context, origin string, ms int64) error
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

func (r *repository) FindByOrigin(ctx context.Context, origin string) (*Session, error) {
	query := `
		SELECT id, ip_address, country, city, region, latitude, longitude,
		       user_agent, first_seen, last_seen, total_active_ms
		FROM user_sessions
		WHERE ip_address = $1
	`

	var sess Session
	err := r.db.GetContext(ctx, &sess, query, origin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &sess, nil
}

// Upsert creates the session row, or bumps last_seen when another writer
// created it first. The unique constraint on ip_address is the arbiter:
// both racers of a first contact converge on the same row.
func (r *repository) Upsert(ctx context.Context, sess *Session) (*Session, error) {
	query := `
		INSERT INTO user_sessions (
			ip_address, country, city, region, latitude, longitude,
			user_agent, first_seen, last_seen, total_active_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0)
		ON CONFLICT (ip_address) DO UPDATE SET
			last_seen  = GREATEST(user_sessions.last_seen, EXCLUDED.last_seen),
			user_agent = COALESCE(NULLIF(EXCLUDED.user_agent, ''), user_sessions.user_agent)
		RETURNING id, ip_address, country, city, region, latitude, longitude,
		          user_agent, first_seen, last_seen, total_active_ms
	`

	var out Session
	err := r.db.GetContext(
		ctx,
		&out,
		query,
		sess.Origin,
		sess.Country,
		sess.City,
		sess.Region,
		sess.Latitude,
		sess.Longitude,
		sess.UserAgent,
		sess.LastSeen,
	)
	if err != nil {
		r.logger.Error("Failed to upsert session",
			zap.Error(err),
			zap.String("origin", sess.Origin),
		)
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	r.logger.Debug("Session upserted",
		zap.Int64("session_id", out.ID),
		zap.String("origin", out.Origin),
		zap.String("country", out.Country),
	)

	return &out, nil
}

func (r *repository) Touch(ctx context.Context, origin string, at time.Time, userAgent string) error {
	query := `
		UPDATE user_sessions
		SET last_seen  = GREATEST(last_seen, $2),
		    user_agent = COALESCE(NULLIF($3, ''), user_agent)
		WHERE ip_address = $1
	`

	result, err := r.db.ExecContext(ctx, query, origin, at, userAgent)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (r *repository) AddActiveTime(ctx context.Context, origin string, ms int64) error {
	query := `
		UPDATE user_sessions
		SET total_active_ms = total_active_ms + $2
		WHERE ip_address = $1
	`

	result, err := r.db.ExecContext(ctx, query, origin, ms)
	if err != nil {
		return fmt.Errorf("failed to add active time: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}
