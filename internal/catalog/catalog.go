package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Catalog is the read-only view of the product table the analytics core
// needs. Product lifecycle is owned elsewhere.
type Catalog interface {
	Exists(ctx context.Context, productID int64) (bool, error)
	Name(ctx context.Context, productID int64) (string, error)
}

type catalog struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(db *sqlx.DB, logger *zap.Logger) Catalog {
	return &catalog{
		db:     db,
		logger: logger,
	}
}

func (c *catalog) Exists(ctx context.Context, productID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	var exists bool
	if err := c.db.GetContext(ctx, &exists, query, productID); err != nil {
		c.logger.Error("Failed to check product existence",
			zap.Error(err),
			zap.Int64("product_id", productID),
		)
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}

	return exists, nil
}

func (c *catalog) Name(ctx context.Context, productID int64) (string, error) {
	query := `SELECT name FROM products WHERE id = $1`

	var name string
	err := c.db.GetContext(ctx, &name, query, productID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get product name: %w", err)
	}

	return name, nil
}
