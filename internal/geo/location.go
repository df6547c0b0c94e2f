package geo

import "context"

// Location is the coarse position derived from a network origin.
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Unknown is what a session gets when the lookup fails. Session creation
// must never block on geolocation.
func Unknown() Location {
	return Location{
		Country: "Unknown",
		City:    "Unknown",
		Region:  "Unknown",
	}
}

type Locator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}
