package cache

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{ puts int }

func (b *brokenCache) Get(context.Context, string) (*domain.GeocodeCacheEntry, error) {
	return nil, errors.New("connection refused")
}

func (b *brokenCache) Put(context.Context, string, *domain.Coordinate) error {
	b.puts++
	return errors.New("connection refused")
}

func TestLayeredBackfillsMemoryFromShared(t *testing.T) {
	ctx := context.Background()
	shared, _ := newRedisCache(t)
	local := NewMemoryGeocodeCache(DefaultTTLPolicy())
	l := NewLayeredGeocodeCache(local, logger.Discard(), shared)

	coord := domain.Coordinate{Lat: 6.8649, Lon: 79.8997}
	require.NoError(t, shared.Put(ctx, "nugegoda", &coord))

	e, err := l.Get(ctx, "nugegoda")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, coord, *e.Coordinate)

	le, _ := local.Get(ctx, "nugegoda")
	require.NotNil(t, le)
	assert.True(t, le.ResolvedAt.Equal(e.ResolvedAt), "backfill keeps the shared timestamp")
}

func TestLayeredWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	shared, mr := newRedisCache(t)
	local := NewMemoryGeocodeCache(DefaultTTLPolicy())
	l := NewLayeredGeocodeCache(local, logger.Discard(), shared)

	require.NoError(t, l.Put(ctx, "kandy", nil))
	assert.True(t, mr.Exists("geocode:kandy"))
	e, _ := local.Get(ctx, "kandy")
	require.NotNil(t, e)
	assert.True(t, e.Failed)
}

func TestLayeredSharedErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	shared := &brokenCache{}
	l := NewLayeredGeocodeCache(NewMemoryGeocodeCache(DefaultTTLPolicy()), logger.Discard(), shared)

	e, err := l.Get(ctx, "galle")
	require.NoError(t, err)
	assert.Nil(t, e)

	coord := domain.Coordinate{Lat: 6.0535, Lon: 80.2210}
	require.NoError(t, l.Put(ctx, "galle", &coord))
	assert.Equal(t, 1, shared.puts)

	e, err = l.Get(ctx, "galle")
	require.NoError(t, err)
	require.NotNil(t, e, "memory tier still serves the write")
}

func TestLayeredWithoutSharedTier(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	local := NewMemoryGeocodeCache(DefaultTTLPolicy()).WithClock(clk.Now)
	l := NewLayeredGeocodeCache(local, logger.Discard())

	require.NoError(t, l.Put(ctx, "x", nil))
	clk.Advance(2 * time.Hour)

	n, err := l.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// seededTier stands in for the Postgres tier: entries written ahead of time,
// typically by the seeding tool.
func seededTier(t *testing.T, clk *fakeClock, entries map[string]domain.Coordinate) *MemoryGeocodeCache {
	t.Helper()
	c := NewMemoryGeocodeCache(DefaultTTLPolicy()).WithClock(clk.Now)
	for k, v := range entries {
		require.NoError(t, c.Put(context.Background(), k, &v))
	}
	return c
}

func TestLayeredReadsThroughAllTiers(t *testing.T) {
	ctx := context.Background()
	clk := newClock()

	redisTier, mr := newRedisCache(t)
	redisTier.now = clk.Now
	fort := domain.Coordinate{Lat: 6.9271, Lon: 79.8612}
	sqlTier := seededTier(t, clk, map[string]domain.Coordinate{"colombo fort": fort})
	local := NewMemoryGeocodeCache(DefaultTTLPolicy()).WithClock(clk.Now)

	l := NewLayeredGeocodeCache(local, logger.Discard(), redisTier, sqlTier)

	clk.Advance(4 * time.Hour)
	e, err := l.Get(ctx, "colombo fort")
	require.NoError(t, err)
	require.NotNil(t, e, "seeded entry in the slowest tier is found")
	assert.Equal(t, fort, *e.Coordinate)

	le, _ := local.Get(ctx, "colombo fort")
	require.NotNil(t, le)
	assert.True(t, le.ResolvedAt.Equal(e.ResolvedAt))

	require.True(t, mr.Exists("geocode:colombo fort"), "redis is backfilled")
	assert.Equal(t, 20*time.Hour, mr.TTL("geocode:colombo fort"), "redis expiry follows the original timestamp")
	re, err := redisTier.Get(ctx, "colombo fort")
	require.NoError(t, err)
	require.NotNil(t, re)
	assert.True(t, re.ResolvedAt.Equal(e.ResolvedAt))
}

func TestLayeredPrefersFasterSharedTier(t *testing.T) {
	ctx := context.Background()
	clk := newClock()

	redisTier, _ := newRedisCache(t)
	fromRedis := domain.Coordinate{Lat: 6.8649, Lon: 79.8997}
	require.NoError(t, redisTier.Put(ctx, "nugegoda", &fromRedis))
	sqlTier := seededTier(t, clk, map[string]domain.Coordinate{"nugegoda": {Lat: 1, Lon: 1}})

	l := NewLayeredGeocodeCache(NewMemoryGeocodeCache(DefaultTTLPolicy()), logger.Discard(), redisTier, sqlTier)

	e, err := l.Get(ctx, "nugegoda")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, fromRedis, *e.Coordinate)
}

func TestLayeredSkipsBrokenTier(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	broken := &brokenCache{}
	fort := domain.Coordinate{Lat: 6.9271, Lon: 79.8612}
	sqlTier := seededTier(t, clk, map[string]domain.Coordinate{"colombo fort": fort})

	l := NewLayeredGeocodeCache(NewMemoryGeocodeCache(DefaultTTLPolicy()).WithClock(clk.Now), logger.Discard(), broken, sqlTier)

	e, err := l.Get(ctx, "colombo fort")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, fort, *e.Coordinate)
}

func TestLayeredWritesEveryTier(t *testing.T) {
	ctx := context.Background()
	redisTier, mr := newRedisCache(t)
	sqlTier := NewMemoryGeocodeCache(DefaultTTLPolicy())
	l := NewLayeredGeocodeCache(NewMemoryGeocodeCache(DefaultTTLPolicy()), logger.Discard(), redisTier, sqlTier)

	coord := domain.Coordinate{Lat: 6.0535, Lon: 80.2210}
	require.NoError(t, l.Put(ctx, "galle", &coord))
	assert.True(t, mr.Exists("geocode:galle"))
	e, _ := sqlTier.Get(ctx, "galle")
	assert.NotNil(t, e)
}
