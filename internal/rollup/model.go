package rollup

import "time"

// Summary is one hourly bucket of interaction volume per kind, kept
// alongside the per-pair aggregates as a cheap timeline for dashboards.
type Summary struct {
	ID              int64     `db:"id" json:"id"`
	BucketDate      time.Time `db:"bucket_date" json:"bucket_date"`
	BucketHour      int       `db:"bucket_hour" json:"bucket_hour"`
	Kind            string    `db:"kind" json:"kind"`
	TotalEvents     int64     `db:"total_events" json:"total_events"`
	TotalDurationMs int64     `db:"total_duration_ms" json:"total_duration_ms"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func NewSummary(at time.Time, kind string) *Summary {
	at = at.UTC()
	return &Summary{
		BucketDate: at.Truncate(24 * time.Hour),
		BucketHour: at.Hour(),
		Kind:       kind,
		UpdatedAt:  time.Now().UTC(),
	}
}

// Message is the wire shape of an accepted interaction record as
// published on the interactions topic.
type Message struct {
	Origin     string    `json:"origin"`
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"kind"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	ClientID   string    `json:"client_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
