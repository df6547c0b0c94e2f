package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLookupResolvesPublicAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/41.224.10.5", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"Tunisia","regionName":"Sousse","city":"Sousse","lat":35.82,"lon":10.64}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())

	loc, err := client.Lookup(context.Background(), "41.224.10.5")
	require.NoError(t, err)
	assert.Equal(t, "Tunisia", loc.Country)
	assert.Equal(t, "Sousse", loc.City)
	assert.Equal(t, "Sousse", loc.Region)
	assert.InDelta(t, 35.82, loc.Latitude, 0.001)
	assert.InDelta(t, 10.64, loc.Longitude, 0.001)
}

func TestLookupShortCircuitsLocalAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request for local address: %s", r.URL.Path)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())

	for _, ip := range []string{"127.0.0.1", "::1", "localhost", "192.168.1.14", "10.0.0.3"} {
		loc, err := client.Lookup(context.Background(), ip)
		require.NoError(t, err, ip)
		assert.Equal(t, "Tunisia", loc.Country, ip)
		assert.Equal(t, "Tunis", loc.City, ip)
	}
}

func TestLookupReturnsUnknownOnProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())

	loc, err := client.Lookup(context.Background(), "203.0.113.9")
	require.Error(t, err)
	assert.Equal(t, Unknown(), loc)
}
