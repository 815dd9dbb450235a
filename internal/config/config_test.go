package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "GEOCODER_KIND", "GEOCODER_BASE_URL",
		"GEOCODE_MIN_INTERVAL", "GEOCODE_RETRIES", "GEOCODE_BACKOFF", "GEOCODE_CACHE_TTL",
		"GEOCODE_FAILURE_TTL", "ROUTING_BASE_URL", "ROUTING_KIND", "AVG_SPEED_KMH", "MAX_STOPS_PER_ROUTE",
	} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "nominatim", c.Geocoder.Kind)
	assert.Equal(t, "https://nominatim.openstreetmap.org", c.Geocoder.BaseURL)
	assert.Equal(t, time.Second, c.Geocoder.MinInterval)
	assert.Equal(t, 2, c.Geocoder.Retries)
	assert.Equal(t, time.Second, c.Geocoder.Backoff)
	assert.Equal(t, 24*time.Hour, c.Geocoder.SuccessTTL)
	assert.Equal(t, time.Hour, c.Geocoder.FailureTTL)
	assert.Equal(t, 30.0, c.AvgSpeedKmh)
	assert.Equal(t, 100, c.MaxStops)
	assert.Empty(t, c.Routing.BaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEOCODER_KIND", "ORS")
	t.Setenv("ROUTING_BASE_URL", "http://vroom:3000/")
	t.Setenv("GEOCODE_RETRIES", "0")
	t.Setenv("AVG_SPEED_KMH", "42.5")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ors", c.Geocoder.Kind)
	assert.Equal(t, "http://vroom:3000", c.Routing.BaseURL)
	assert.Equal(t, 0, c.Geocoder.Retries)
	assert.Equal(t, 42.5, c.AvgSpeedKmh)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GEOCODE_MIN_INTERVAL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "GEOCODE_MIN_INTERVAL")

	t.Setenv("GEOCODE_MIN_INTERVAL", "")
	t.Setenv("AVG_SPEED_KMH", "-1")
	_, err = Load()
	assert.ErrorContains(t, err, "AVG_SPEED_KMH")

	t.Setenv("AVG_SPEED_KMH", "")
	t.Setenv("GEOCODER_KIND", "google")
	_, err = Load()
	assert.ErrorContains(t, err, "GEOCODER_KIND")
}
