package repositories_test

import (
	"os"
	"path/filepath"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedGeocodeSeeds(t *testing.T) {
	rows, err := repositories.LoadGeocodeSeeds(filepath.Join("..", "..", "..", "data", "seeds", "geocode.json"))
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	fort := rows["colombo fort, colombo, sri lanka"]
	require.NotNil(t, fort)
	assert.InDelta(t, 6.9271, fort.Lat, 1e-4)
	assert.InDelta(t, 79.8612, fort.Lon, 1e-4)

	// Distinct places must not share a coordinate.
	seen := map[domain.Coordinate]string{}
	for addr, c := range rows {
		if other, dup := seen[*c]; dup {
			t.Errorf("%q and %q share coordinate %v", addr, other, *c)
		}
		seen[*c] = addr
	}
}

func TestLoadGeocodeSeedsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty address": `[{"address": "  ", "lat": 1, "lon": 1}]`,
		"out of range":  `[{"address": "Somewhere", "lat": 91, "lon": 1}]`,
		"duplicate":     `[{"address": "Nugegoda", "lat": 6.86, "lon": 79.89}, {"address": " nugegoda ", "lat": 6.87, "lon": 79.9}]`,
		"not json":      `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seed.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := repositories.LoadGeocodeSeeds(path)
			assert.Error(t, err)
		})
	}
}
