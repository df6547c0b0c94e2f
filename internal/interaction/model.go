package interaction

import "time"

const (
	KindView  = "view"
	KindHover = "hover"
	KindClick = "click"
)

// Record is the ephemeral unit of work sent by the storefront tracker.
// It is never persisted verbatim: it is validated, folded into the
// (session, product) aggregate, and republished for downstream rollups.
type Record struct {
	Origin     string    `json:"origin"`
	UserAgent  string    `json:"-"`
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"kind"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	ClientID   string    `json:"client_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Record) Validate() error {
	switch r.Kind {
	case KindView, KindClick:
		return nil
	case KindHover:
		if r.DurationMs <= 0 {
			return ErrInvalidDuration
		}
		return nil
	default:
		return ErrInvalidKind
	}
}

// Delta is the additive contribution of one record to its aggregate.
type Delta struct {
	HoverMs int64
	Hovers  int64
	Views   int64
	Clicks  int64
}

func (r *Record) Delta() Delta {
	switch r.Kind {
	case KindView:
		return Delta{Views: 1}
	case KindClick:
		return Delta{Clicks: 1}
	case KindHover:
		return Delta{Hovers: 1, HoverMs: r.DurationMs}
	}
	return Delta{}
}

// Aggregate is the durable cumulative summary of all interactions between
// one session and one product. At most one row exists per pair; counters
// only ever grow and last_interaction never regresses.
type Aggregate struct {
	ID               int64     `db:"id" json:"id"`
	SessionID        int64     `db:"user_session_id" json:"session_id"`
	ProductID        int64     `db:"product_id" json:"product_id"`
	TotalHoverMs     int64     `db:"total_hover_ms" json:"total_hover_ms"`
	TotalHovers      int64     `db:"total_hovers" json:"total_hovers"`
	TotalViews       int64     `db:"total_views" json:"total_views"`
	TotalClicks      int64     `db:"total_clicks" json:"total_clicks"`
	FirstInteraction time.Time `db:"first_interaction" json:"first_interaction"`
	LastInteraction  time.Time `db:"last_interaction" json:"last_interaction"`
}
