package session

import "time"

// Session is the durable record for one distinct network origin. The
// origin address is the natural key; repeated contacts from the same
// address always land on the same row.
type Session struct {
	ID            int64     `db:"id" json:"id"`
	Origin        string    `db:"ip_address" json:"ip_address"`
	Country       string    `db:"country" json:"country"`
	City          string    `db:"city" json:"city"`
	Region        string    `db:"region" json:"region"`
	Latitude      float64   `db:"latitude" json:"latitude"`
	Longitude     float64   `db:"longitude" json:"longitude"`
	UserAgent     string    `db:"user_agent" json:"user_agent"`
	FirstSeen     time.Time `db:"first_seen" json:"first_seen"`
	LastSeen      time.Time `db:"last_seen" json:"last_seen"`
	TotalActiveMs int64     `db:"total_active_ms" json:"total_active_ms"`
}
