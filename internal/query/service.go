package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloess/interaction-analytics/internal/catalog"
	"go.uber.org/zap"
)

var ErrInvalidWindow = errors.New("lookback window must be positive")

type Service struct {
	repo    Repository
	catalog catalog.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

type ServiceOption func(*Service)

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, cat catalog.Catalog, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		catalog: cat,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BySession returns one summary per session with activity inside the
// window. An empty window of activity yields an empty list, not an error.
func (s *Service) BySession(ctx context.Context, window time.Duration) ([]*SessionSummary, error) {
	since, err := s.windowStart(window)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.SessionRows(ctx, since)
	if err != nil {
		s.logger.Error("Failed to get session summaries", zap.Error(err), zap.Duration("window", window))
		return nil, fmt.Errorf("failed to get session summaries: %w", err)
	}

	summaries := make([]*SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &SessionSummary{
			SessionID:         row.ID,
			Origin:            row.Origin,
			Country:           row.Country,
			City:              row.City,
			FirstSeen:         row.FirstSeen,
			LastSeen:          row.LastSeen,
			TotalHoverMs:      row.TotalHoverMs,
			TotalHovers:       row.TotalHovers,
			TotalViews:        row.TotalViews,
			TotalClicks:       row.TotalClicks,
			Products:          row.Products,
			TotalInteractions: row.TotalViews + row.TotalHovers + row.TotalClicks,
		})
	}

	s.logger.Debug("Session summaries retrieved",
		zap.Int("count", len(summaries)),
		zap.Duration("window", window),
	)

	return summaries, nil
}

// ByProduct returns one summary per product with activity inside the
// window. The average hover duration is cumulative duration over hover
// count, left nil when the product was never hovered.
func (s *Service) ByProduct(ctx context.Context, window time.Duration) ([]*ProductSummary, error) {
	since, err := s.windowStart(window)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ProductRows(ctx, since)
	if err != nil {
		s.logger.Error("Failed to get product summaries", zap.Error(err), zap.Duration("window", window))
		return nil, fmt.Errorf("failed to get product summaries: %w", err)
	}

	summaries := make([]*ProductSummary, 0, len(rows))
	for _, row := range rows {
		summary := &ProductSummary{
			ProductID:         row.ProductID,
			Name:              s.productName(ctx, row.ProductID),
			UniqueSessions:    row.UniqueSessions,
			TotalViews:        row.TotalViews,
			TotalHovers:       row.TotalHovers,
			TotalClicks:       row.TotalClicks,
			TotalHoverMs:      row.TotalHoverMs,
			TotalInteractions: row.TotalViews + row.TotalHovers + row.TotalClicks,
		}
		if row.TotalHovers > 0 {
			avg := float64(row.TotalHoverMs) / float64(row.TotalHovers)
			summary.AvgHoverMs = &avg
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ByCountry returns one summary per distinct country among sessions with
// activity inside the window.
func (s *Service) ByCountry(ctx context.Context, window time.Duration) ([]*CountrySummary, error) {
	since, err := s.windowStart(window)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.CountryRows(ctx, since)
	if err != nil {
		s.logger.Error("Failed to get country summaries", zap.Error(err), zap.Duration("window", window))
		return nil, fmt.Errorf("failed to get country summaries: %w", err)
	}

	summaries := make([]*CountrySummary, 0, len(rows))
	for _, row := range rows {
		total := row.TotalViews + row.TotalHovers + row.TotalClicks
		summary := &CountrySummary{
			Country:           row.Country,
			Sessions:          row.Sessions,
			TotalInteractions: total,
		}
		if row.Sessions > 0 {
			summary.AvgPerSession = float64(total) / float64(row.Sessions)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// productName is best-effort enrichment: a failed catalog lookup leaves
// the name empty rather than failing the rollup.
func (s *Service) productName(ctx context.Context, productID int64) string {
	name, err := s.catalog.Name(ctx, productID)
	if err != nil {
		s.logger.Warn("Product name lookup failed",
			zap.Error(err),
			zap.Int64("product_id", productID),
		)
		return ""
	}
	return name
}

func (s *Service) windowStart(window time.Duration) (time.Time, error) {
	if window <= 0 {
		return time.Time{}, ErrInvalidWindow
	}
	return s.now().UTC().Add(-window), nil
}
