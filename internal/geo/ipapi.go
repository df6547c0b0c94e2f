package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "http://ip-api.com/json"

// Client resolves origins through ip-api.com. The free tier needs no key
// and allows enough requests for session creation, which only happens on
// first contact per origin.
type Client struct {
	baseURL string
	http    *http.Client
	local   Location
	logger  *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Local is returned for loopback and private addresses, which the
	// provider cannot resolve. The storefront is Tunis-based, so local
	// development traffic maps there.
	Local *Location
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	local := Location{
		Country:   "Tunisia",
		City:      "Tunis",
		Region:    "Tunis",
		Latitude:  36.8190,
		Longitude: 10.1658,
	}
	if cfg.Local != nil {
		local = *cfg.Local
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		local:   local,
		logger:  logger,
	}
}

type ipapiResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	if isLocalAddress(ip) {
		return c.local, nil
	}

	url := fmt.Sprintf("%s/%s?fields=status,country,regionName,city,lat,lon", c.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unknown(), fmt.Errorf("failed to build geolocation request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Geolocation lookup failed", zap.Error(err), zap.String("ip", ip))
		return Unknown(), fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unknown(), fmt.Errorf("geolocation provider returned status %d", resp.StatusCode)
	}

	var data ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Unknown(), fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if data.Status != "success" {
		return Unknown(), fmt.Errorf("geolocation provider could not resolve %s", ip)
	}

	return Location{
		Country:   data.Country,
		City:      data.City,
		Region:    data.RegionName,
		Latitude:  data.Lat,
		Longitude: data.Lon,
	}, nil
}

func isLocalAddress(ip string) bool {
	if ip == "localhost" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified()
}
