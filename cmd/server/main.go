package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/adapters/geocoding"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/adapters/routing"
	"route-optimization-service/internal/api"
	"route-optimization-service/internal/api/handlers"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/jobs"
	"route-optimization-service/internal/platform/db"
	"route-optimization-service/internal/platform/logger"
	"route-optimization-service/internal/ports"
	"route-optimization-service/internal/services"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, geocoder, VROOM) behind ports and starts the HTTP server.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Info("no .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var (
		sqlDB     *sql.DB
		repo      ports.RouteRepository
		vehicles  ports.VehicleRepository
		redisTier ports.GeocodeCache
		sqlTier   ports.GeocodeCache
		ping      func(context.Context) error
	)
	ttl := cache.TTLPolicy{Success: cfg.Geocoder.SuccessTTL, Failure: cfg.Geocoder.FailureTTL}

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := repositories.InitSchema(ctx, conn); err != nil {
			return err
		}
		sqlDB = conn
		repo = repositories.NewPostgresRouteRepository(sqlDB)
		vehicles = repositories.NewPostgresVehicleRepository(sqlDB)
		sqlTier = cache.NewSQLGeocodeCache(sqlDB, ttl)
		ping = sqlDB.PingContext
	} else {
		log.Warn("DATABASE_URL not set: routes will not be stored")
	}

	// Redis sits in front of Postgres, which holds seeded and long-lived entries.
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rc := redis.NewClient(opts)
		defer rc.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rc.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, continuing without it", "error", err)
		} else {
			redisTier = cache.NewRedisGeocodeCache(rc, ttl)
		}
	}

	geoCache := cache.NewLayeredGeocodeCache(cache.NewMemoryGeocodeCache(ttl), log, redisTier, sqlTier)

	provider, err := geocoding.NewHTTPProvider(geocoding.Options{
		Kind:         cfg.Geocoder.Kind,
		BaseURL:      cfg.Geocoder.BaseURL,
		APIKey:       cfg.Geocoder.APIKey,
		UserAgent:    cfg.Geocoder.UserAgent,
		CountryCodes: cfg.Geocoder.CountryCodes,
	})
	if err != nil {
		return err
	}

	geocoder := services.NewGeocoder(
		provider,
		geoCache,
		services.NewGeocodeLimiter(cfg.Geocoder.MinInterval),
		services.GeocoderConfig{
			Retries:     cfg.Geocoder.Retries,
			Backoff:     cfg.Geocoder.Backoff,
			Concurrency: cfg.Geocoder.Concurrency,
		},
	)

	var remote ports.RouteOptimizer
	if cfg.Routing.BaseURL != "" {
		vroom, err := routing.NewVROOMOptimizer(routing.Options{
			Kind:    cfg.Routing.Kind,
			BaseURL: cfg.Routing.BaseURL,
			APIKey:  cfg.Routing.APIKey,
			Profile: cfg.Routing.Profile,
			Timeout: cfg.Routing.Timeout,
		})
		if err != nil {
			return err
		}
		remote = vroom
	} else {
		log.Info("ROUTING_BASE_URL not set: using local optimizer only")
	}

	pipeline := services.NewRoutePipeline(geocoder, remote, services.NewLocalOptimizer(cfg.AvgSpeedKmh), cfg.MaxStops)

	purge := jobs.NewCachePurgeJob(geoCache, cfg.Geocoder.PurgeSchedule, log)
	if err := purge.Start(); err != nil {
		return err
	}
	defer purge.Stop()

	router := api.NewRouter(api.Deps{
		Routes:   &handlers.RouteHandler{Planner: pipeline, Repo: repo, Vehicles: vehicles},
		Geocode:  &handlers.GeocodeHandler{Resolver: geocoder, MaxAddresses: cfg.MaxStops},
		Health:   &handlers.HealthHandler{Ping: ping},
		Vehicles: &handlers.VehicleHandler{Repo: vehicles},
		Logger:   log,
	})

	// Timeouts are tuned for cold-cache runs: geocoding is paced at one call per interval.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
