package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloess/interaction-analytics/internal/interaction"
	"github.com/cloess/interaction-analytics/internal/query"
	"github.com/cloess/interaction-analytics/internal/rollup"
	"github.com/cloess/interaction-analytics/internal/session"
)

const defaultWindowHours = 24

// SessionService resolves and maintains origin-keyed sessions.
type SessionService interface {
	Ensure(ctx context.Context, origin, userAgent string, touch bool) (*session.Session, error)
	AddActiveTime(ctx context.Context, origin string, ms int64) error
}

// InteractionService accepts interaction records for aggregation.
type InteractionService interface {
	Record(ctx context.Context, rec *interaction.Record) error
}

// QueryService serves windowed read-side rollups.
type QueryService interface {
	BySession(ctx context.Context, window time.Duration) ([]*query.SessionSummary, error)
	ByProduct(ctx context.Context, window time.Duration) ([]*query.ProductSummary, error)
	ByCountry(ctx context.Context, window time.Duration) ([]*query.CountrySummary, error)
}

// RollupService serves the hourly interaction timeline.
type RollupService interface {
	Timeline(ctx context.Context, from, to time.Time, kind string) ([]*rollup.Summary, error)
}

// HealthChecker reports backing-store liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	sessions     SessionService
	interactions InteractionService
	queries      QueryService
	rollups      RollupService
	health       HealthChecker
	logger       *zap.Logger
}

func NewHandler(
	sessions SessionService,
	interactions InteractionService,
	queries QueryService,
	rollups RollupService,
	health HealthChecker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:     sessions,
		interactions: interactions,
		queries:      queries,
		rollups:      rollups,
		health:       health,
		logger:       logger,
	}
}

// Router assembles the gin engine with all routes and middleware.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(h.logger))
	router.Use(CORS())

	analytics := router.Group("/analytics")
	{
		analytics.POST("/session", h.ensureSession)
		analytics.POST("/track-interaction", h.trackInteraction)
		analytics.POST("/active-time", h.addActiveTime)
		analytics.GET("/users", h.userAnalytics)
		analytics.GET("/products", h.productAnalytics)
		analytics.GET("/countries", h.countryAnalytics)
		analytics.GET("/timeline", h.timeline)
	}

	router.GET("/health", h.healthCheck)

	return router
}

func (h *Handler) ensureSession(c *gin.Context) {
	sess, err := h.sessions.Ensure(c.Request.Context(), c.ClientIP(), c.Request.UserAgent(), true)
	if err != nil {
		if errors.Is(err, session.ErrInvalidOrigin) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not determine client origin"})
			return
		}
		h.logger.Error("Failed to ensure session", zap.Error(err), zap.String("origin", c.ClientIP()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"session_id": sess.ID,
		"country":    sess.Country,
		"city":       sess.City,
	})
}

type trackRequest struct {
	ProductID       int64  `json:"product_id" binding:"required"`
	InteractionType string `json:"interaction_type" binding:"required"`
	DurationMs      int64  `json:"duration_ms"`
	PageURL         string `json:"page_url"`
	SessionID       string `json:"session_id"`
}

func (h *Handler) trackInteraction(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec := &interaction.Record{
		Origin:     c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		ProductID:  req.ProductID,
		Kind:       req.InteractionType,
		DurationMs: req.DurationMs,
		PageURL:    req.PageURL,
		ClientID:   req.SessionID,
		OccurredAt: time.Now().UTC(),
	}

	if err := h.interactions.Record(c.Request.Context(), rec); err != nil {
		switch {
		case errors.Is(err, interaction.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, interaction.ErrInvalidKind), errors.Is(err, interaction.ErrInvalidDuration):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to record interaction",
				zap.Error(err),
				zap.Int64("product_id", req.ProductID),
				zap.String("kind", req.InteractionType),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to record interaction"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type activeTimeRequest struct {
	ActiveMs int64 `json:"active_ms" binding:"required"`
}

func (h *Handler) addActiveTime(c *gin.Context) {
	var req activeTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ActiveMs <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active_ms must be a positive integer"})
		return
	}

	if err := h.sessions.AddActiveTime(c.Request.Context(), c.ClientIP(), req.ActiveMs); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("Failed to add active time", zap.Error(err), zap.String("origin", c.ClientIP()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) userAnalytics(c *gin.Context) {
	window, ok := h.lookbackWindow(c)
	if !ok {
		return
	}

	summaries, err := h.queries.BySession(c.Request.Context(), window)
	if err != nil {
		h.queryError(c, err, "user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": summaries, "count": len(summaries)})
}

func (h *Handler) productAnalytics(c *gin.Context) {
	window, ok := h.lookbackWindow(c)
	if !ok {
		return
	}

	summaries, err := h.queries.ByProduct(c.Request.Context(), window)
	if err != nil {
		h.queryError(c, err, "product")
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": summaries, "count": len(summaries)})
}

func (h *Handler) countryAnalytics(c *gin.Context) {
	window, ok := h.lookbackWindow(c)
	if !ok {
		return
	}

	summaries, err := h.queries.ByCountry(c.Request.Context(), window)
	if err != nil {
		h.queryError(c, err, "country")
		return
	}

	c.JSON(http.StatusOK, gin.H{"countries": summaries, "count": len(summaries)})
}

const timelineDateLayout = "2006-01-02"

func (h *Handler) timeline(c *gin.Context) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -7)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(timelineDateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' date, use YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(timelineDateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' date, use YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	summaries, err := h.rollups.Timeline(c.Request.Context(), from, to, c.Query("kind"))
	if err != nil {
		switch {
		case errors.Is(err, rollup.ErrInvalidKind):
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be view, hover or click"})
		case errors.Is(err, rollup.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must not be after 'to'"})
		default:
			h.logger.Error("Timeline query failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to retrieve timeline"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeline": summaries, "count": len(summaries)})
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		if err := h.health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// lookbackWindow parses the hours query parameter, defaulting to 24.
// On a bad value it writes the 400 response and returns ok=false.
func (h *Handler) lookbackWindow(c *gin.Context) (time.Duration, bool) {
	hours := defaultWindowHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return 0, false
		}
		hours = parsed
	}
	return time.Duration(hours) * time.Hour, true
}

func (h *Handler) queryError(c *gin.Context, err error, scope string) {
	if errors.Is(err, query.ErrInvalidWindow) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	h.logger.Error("Analytics query failed", zap.Error(err), zap.String("scope", scope))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to retrieve analytics"})
}
