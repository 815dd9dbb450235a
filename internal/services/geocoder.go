package services

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/metrics"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const reasonNoMatch = "no match"

type GeocoderConfig struct {
	// Retries after the first failed provider attempt.
	Retries int
	// Delay before the first retry; doubles on each further retry.
	Backoff time.Duration
	// Upper bound on addresses resolved in parallel within one batch.
	Concurrency int
}

func DefaultGeocoderConfig() GeocoderConfig {
	return GeocoderConfig{Retries: 2, Backoff: time.Second, Concurrency: 4}
}

// NewGeocodeLimiter builds the process-wide provider gate: one call per interval, no burst.
func NewGeocodeLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Geocoder resolves addresses through the cache, then the provider.
//
// The limiter and cache are shared by every pipeline run in the process. Each
// provider attempt (retries included) waits on the limiter, so concurrent
// batches queue instead of each pacing itself. Lookups for the same normalized
// address are coalesced so only one provider call is in flight per key.
type Geocoder struct {
	provider ports.GeocodeProvider
	cache    ports.GeocodeCache
	limiter  *rate.Limiter
	cfg      GeocoderConfig
	flight   singleflight.Group
}

func NewGeocoder(
	provider ports.GeocodeProvider,
	cache ports.GeocodeCache,
	limiter *rate.Limiter,
	cfg GeocoderConfig,
) *Geocoder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Geocoder{provider: provider, cache: cache, limiter: limiter, cfg: cfg}
}

// lookup carries a resolution out of singleflight along with whether it
// was cut short by cancellation and must not be memoized.
type lookup struct {
	res         domain.Resolution
	interrupted bool
}

// Resolve returns exactly one entry per distinct input address. Failures are
// reported per address and never abort the batch.
func (g *Geocoder) Resolve(ctx context.Context, addresses []string) map[string]domain.Resolution {
	out := make(map[string]domain.Resolution, len(addresses))
	var mu sync.Mutex

	var eg errgroup.Group
	eg.SetLimit(g.cfg.Concurrency)

	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}

		a := a
		eg.Go(func() error {
			r := g.ResolveOne(ctx, a)
			mu.Lock()
			out[a] = r
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

func (g *Geocoder) ResolveOne(ctx context.Context, address string) domain.Resolution {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return failure(address, "empty address", false)
	}

	if r, ok := g.fromCache(ctx, address, key, false); ok {
		return r
	}

	v, _, _ := g.flight.Do(key, func() (any, error) {
		// A flight that just finished may have filled the cache.
		if r, ok := g.fromCache(ctx, address, key, true); ok {
			return lookup{res: r}, nil
		}
		return g.fetch(ctx, address, key), nil
	})
	l := v.(lookup)

	// The flight ran on another caller's context; if that caller went away, try on ours.
	if l.interrupted && ctx.Err() == nil {
		l = g.fetch(ctx, address, key)
	}

	r := l.res
	if r.Failure != nil && r.Failure.Address != address {
		f := *r.Failure
		f.Address = address
		r.Failure = &f
	}
	return r
}

// fromCache reads key from the cache. countMiss is set only on the check inside
// the flight, so a cold lookup counts one miss.
func (g *Geocoder) fromCache(ctx context.Context, address, key string, countMiss bool) (domain.Resolution, bool) {
	e, err := g.cache.Get(ctx, key)
	if err != nil {
		obs.FromContext(ctx).WarnContext(ctx, "geocode cache read failed", "key", key, "error", err)
		return domain.Resolution{}, false
	}
	if e == nil {
		if countMiss {
			metrics.GeocodeCacheMissesTotal.Inc()
		}
		return domain.Resolution{}, false
	}

	if e.Failed || e.Coordinate == nil {
		metrics.GeocodeCacheHitsTotal.WithLabelValues("failed").Inc()
		return failure(address, "previously unresolvable", true), true
	}

	metrics.GeocodeCacheHitsTotal.WithLabelValues("ok").Inc()
	c := *e.Coordinate
	return domain.Resolution{Coordinate: &c}, true
}

// fetch calls the provider with bounded retries, caching the final outcome.
func (g *Geocoder) fetch(ctx context.Context, address, key string) lookup {
	log := obs.FromContext(ctx)
	attempts := 1 + g.cfg.Retries
	reason := ""

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, backoffDelay(g.cfg.Backoff, attempt-1)); err != nil {
				return lookup{res: failure(address, err.Error(), false), interrupted: true}
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return lookup{res: failure(address, err.Error(), false), interrupted: true}
		}

		start := time.Now()
		cands, err := g.provider.Geocode(ctx, address)
		metrics.GeocodeProviderDurationMs.Observe(float64(time.Since(start).Milliseconds()))

		if err == nil {
			if best, ok := bestCandidate(cands); ok {
				metrics.GeocodeProviderAttemptsTotal.WithLabelValues("ok").Inc()
				g.store(ctx, key, &best)
				return lookup{res: domain.Resolution{Coordinate: &best}}
			}
			metrics.GeocodeProviderAttemptsTotal.WithLabelValues("no_match").Inc()
			reason = reasonNoMatch
		} else {
			metrics.GeocodeProviderAttemptsTotal.WithLabelValues("error").Inc()
			reason = err.Error()
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return lookup{res: failure(address, reason, false), interrupted: true}
		}
		log.DebugContext(ctx, "geocode attempt failed", "address", address, "attempt", attempt, "reason", reason)
	}

	log.InfoContext(ctx, "address unresolvable", "address", address, "attempts", attempts, "reason", reason)
	g.store(ctx, key, nil)
	return lookup{res: failure(address, reason, false)}
}

func (g *Geocoder) store(ctx context.Context, key string, c *domain.Coordinate) {
	if err := g.cache.Put(ctx, key, c); err != nil {
		obs.FromContext(ctx).WarnContext(ctx, "geocode cache write failed", "key", key, "error", err)
	}
}

// bestCandidate picks the highest-confidence candidate; the provider's order breaks ties.
func bestCandidate(cands []domain.GeocodeCandidate) (domain.Coordinate, bool) {
	best := -1
	for i, c := range cands {
		if c.Coordinate.Validate() != nil {
			continue
		}
		if best < 0 || c.Confidence > cands[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return domain.Coordinate{}, false
	}
	return cands[best].Coordinate, true
}

func failure(address, reason string, cached bool) domain.Resolution {
	return domain.Resolution{Failure: &domain.ResolutionFailure{Address: address, Reason: reason, Cached: cached}}
}
