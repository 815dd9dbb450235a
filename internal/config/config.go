package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: parse int %q: %w", key, v, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse float %q: %w", key, v, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: parse duration %q: %w", key, v, err)
	}
	return d, nil
}

func GetBool(key string, fallback bool) (bool, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: parse bool %q: %w", key, v, err)
	}
	return b, nil
}

type GeocoderConfig struct {
	Kind          string
	BaseURL       string
	APIKey        string
	UserAgent     string
	CountryCodes  string
	MinInterval   time.Duration
	Retries       int
	Backoff       time.Duration
	Concurrency   int
	SuccessTTL    time.Duration
	FailureTTL    time.Duration
	PurgeSchedule string
}

type RoutingConfig struct {
	Kind    string
	BaseURL string
	APIKey  string
	Profile string
	Timeout time.Duration
}

// Config is the full process configuration, read once at startup.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string
	AvgSpeedKmh float64
	MaxStops    int
	Geocoder    GeocoderConfig
	Routing     RoutingConfig
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	c := Config{
		Port:        Get("PORT", "8080"),
		DatabaseURL: Get("DATABASE_URL", ""),
		RedisURL:    Get("REDIS_URL", ""),
		LogLevel:    Get("LOG_LEVEL", "info"),
		LogFormat:   Get("LOG_FORMAT", "text"),
		Geocoder: GeocoderConfig{
			Kind:          strings.ToLower(Get("GEOCODER_KIND", "nominatim")),
			BaseURL:       strings.TrimRight(Get("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"), "/"),
			APIKey:        Get("GEOCODER_API_KEY", ""),
			UserAgent:     Get("GEOCODER_USER_AGENT", "route-optimization-service/1.0"),
			CountryCodes:  Get("GEOCODER_COUNTRY_CODES", ""),
			PurgeSchedule: Get("GEOCODE_CACHE_PURGE_SCHEDULE", "@every 10m"),
		},
		Routing: RoutingConfig{
			Kind:    strings.ToLower(Get("ROUTING_KIND", "vroom")),
			BaseURL: strings.TrimRight(Get("ROUTING_BASE_URL", ""), "/"),
			APIKey:  Get("ROUTING_API_KEY", ""),
			Profile: Get("ROUTING_PROFILE", "driving-car"),
		},
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	c.AvgSpeedKmh, err = GetFloat("AVG_SPEED_KMH", 30)
	collect(err)
	c.MaxStops, err = GetInt("MAX_STOPS_PER_ROUTE", 100)
	collect(err)
	c.Geocoder.MinInterval, err = GetDuration("GEOCODE_MIN_INTERVAL", time.Second)
	collect(err)
	c.Geocoder.Retries, err = GetInt("GEOCODE_RETRIES", 2)
	collect(err)
	c.Geocoder.Backoff, err = GetDuration("GEOCODE_BACKOFF", time.Second)
	collect(err)
	c.Geocoder.Concurrency, err = GetInt("GEOCODE_CONCURRENCY", 4)
	collect(err)
	c.Geocoder.SuccessTTL, err = GetDuration("GEOCODE_CACHE_TTL", 24*time.Hour)
	collect(err)
	c.Geocoder.FailureTTL, err = GetDuration("GEOCODE_FAILURE_TTL", time.Hour)
	collect(err)
	c.Routing.Timeout, err = GetDuration("ROUTING_TIMEOUT", 30*time.Second)
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.AvgSpeedKmh <= 0:
		return errors.New("AVG_SPEED_KMH must be positive")
	case c.MaxStops <= 0:
		return errors.New("MAX_STOPS_PER_ROUTE must be positive")
	case c.Geocoder.MinInterval <= 0:
		return errors.New("GEOCODE_MIN_INTERVAL must be positive")
	case c.Geocoder.Retries < 0:
		return errors.New("GEOCODE_RETRIES must not be negative")
	case c.Geocoder.Backoff < 0:
		return errors.New("GEOCODE_BACKOFF must not be negative")
	case c.Geocoder.Concurrency <= 0:
		return errors.New("GEOCODE_CONCURRENCY must be positive")
	case c.Geocoder.SuccessTTL <= 0 || c.Geocoder.FailureTTL <= 0:
		return errors.New("geocode cache TTLs must be positive")
	case c.Routing.Timeout <= 0:
		return errors.New("ROUTING_TIMEOUT must be positive")
	}

	switch c.Geocoder.Kind {
	case "nominatim", "ors":
	default:
		return fmt.Errorf("GEOCODER_KIND %q not supported (nominatim|ors)", c.Geocoder.Kind)
	}
	switch c.Routing.Kind {
	case "vroom", "ors":
	default:
		return fmt.Errorf("ROUTING_KIND %q not supported (vroom|ors)", c.Routing.Kind)
	}
	return nil
}
