package query

import "time"

// SessionSummary is one active session's rollup over the lookback window.
type SessionSummary struct {
	SessionID         int64     `json:"session_id"`
	Origin            string    `json:"ip_address"`
	Country           string    `json:"country"`
	City              string    `json:"city"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	TotalHoverMs      int64     `json:"total_hover_ms"`
	TotalHovers       int64     `json:"total_hovers"`
	TotalViews        int64     `json:"total_views"`
	TotalClicks       int64     `json:"total_clicks"`
	Products          int64     `json:"products_interacted"`
	TotalInteractions int64     `json:"total_interactions"`
}

// ProductSummary is one product's rollup. AvgHoverMs is nil when no
// hovers were recorded, which renders as JSON null rather than a fake
// zero average.
type ProductSummary struct {
	ProductID         int64    `json:"product_id"`
	Name              string   `json:"name,omitempty"`
	UniqueSessions    int64    `json:"unique_sessions"`
	TotalViews        int64    `json:"total_views"`
	TotalHovers       int64    `json:"total_hovers"`
	TotalClicks       int64    `json:"total_clicks"`
	TotalHoverMs      int64    `json:"total_hover_ms"`
	AvgHoverMs        *float64 `json:"avg_hover_ms"`
	TotalInteractions int64    `json:"total_interactions"`
}

type CountrySummary struct {
	Country           string  `json:"country"`
	Sessions          int64   `json:"sessions"`
	TotalInteractions int64   `json:"total_interactions"`
	AvgPerSession     float64 `json:"avg_interactions_per_session"`
}
